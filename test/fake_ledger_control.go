package test

import (
	"fmt"
	"net/http"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/keys"
)

func (fl *FakeLedger) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	req, err := readRequest(r)
	if err != nil {
		writeResponse(w, nil, nil, transportErr(common.JsonRpcErrorParse, "Parse error"))
		return
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	sessionId, _ := paramString(req.Params, "sessionId")
	call := Call{Method: req.Method, SessionId: sessionId}
	if s, ok := fl.sessions[sessionId]; ok {
		call.Operator = s.operator.String()
	}
	fl.calls = append(fl.calls, call)

	if inj := fl.takeInjected(req.Method); inj != nil {
		writeResponse(w, req.ID, nil, inj)
		return
	}

	var (
		result interface{}
		rerr   *rpcError
	)
	switch req.Method {
	case "setup":
		result, rerr = fl.setup(req.Params)
	case "reset":
		result, rerr = fl.reset(req.Params)
	case "generateKey":
		result, rerr = fl.generateKey(req.Params)
	case "createAccount":
		result, rerr = fl.withSession(req.Params, fl.createAccount)
	case "updateAccount":
		result, rerr = fl.withSession(req.Params, fl.updateAccount)
	case "deleteAccount":
		result, rerr = fl.withSession(req.Params, fl.deleteAccount)
	case "transferCrypto":
		result, rerr = fl.withSession(req.Params, fl.transferCrypto)
	default:
		rerr = transportErr(common.JsonRpcErrorMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
	writeResponse(w, req.ID, result, rerr)
}

func (fl *FakeLedger) setup(p map[string]interface{}) (interface{}, *rpcError) {
	sessionId, _ := paramString(p, "sessionId")
	if sessionId == "" {
		return nil, transportErr(common.JsonRpcErrorInvalidParams, "sessionId is required")
	}
	opId, ok, rerr := paramEntity(p, "operatorAccountId")
	if rerr != nil {
		return nil, rerr
	}
	if !ok {
		return nil, transportErr(common.JsonRpcErrorInvalidParams, "operatorAccountId is required")
	}
	rawKey, _ := paramString(p, "operatorPrivateKey")
	pk, err := keys.ParsePrivateKey(rawKey)
	if err != nil {
		return nil, transportErr(common.JsonRpcErrorInternal, fmt.Sprintf("invalid operator key: %v", err))
	}
	acct, exists := fl.accounts[opId]
	if !exists || acct.Deleted {
		return nil, domainErr("INVALID_ACCOUNT_ID")
	}
	if acct.Key != pk.PublicKey().StringRaw() {
		return nil, domainErr("INVALID_SIGNATURE")
	}
	fl.sessions[sessionId] = &fakeSession{operator: opId, operatorKey: acct.Key}
	return map[string]interface{}{"message": "Successfully setup client", "status": "SUCCESS"}, nil
}

func (fl *FakeLedger) reset(p map[string]interface{}) (interface{}, *rpcError) {
	sessionId, _ := paramString(p, "sessionId")
	delete(fl.sessions, sessionId)
	return map[string]interface{}{"status": "SUCCESS"}, nil
}

func (fl *FakeLedger) generateKey(p map[string]interface{}) (interface{}, *rpcError) {
	t, _ := paramString(p, "type")
	var (
		kt     keys.KeyType
		public bool
	)
	switch t {
	case "ed25519PrivateKey":
		kt = keys.KeyTypeEd25519
	case "ed25519PublicKey":
		kt, public = keys.KeyTypeEd25519, true
	case "ecdsaSecp256k1PrivateKey":
		kt = keys.KeyTypeEcdsaSecp256k1
	case "ecdsaSecp256k1PublicKey":
		kt, public = keys.KeyTypeEcdsaSecp256k1, true
	default:
		return nil, transportErr(common.JsonRpcErrorInvalidParams, fmt.Sprintf("unsupported key type %q", t))
	}
	pk, err := keys.GeneratePrivateKey(kt)
	if err != nil {
		return nil, transportErr(common.JsonRpcErrorInternal, err.Error())
	}
	if public {
		return map[string]interface{}{"key": pk.PublicKey().StringDer()}, nil
	}
	return map[string]interface{}{"key": pk.StringDer()}, nil
}

// txContext is what a transaction carries besides its body: who pays and which keys signed.
type txContext struct {
	session *fakeSession
	payer   common.EntityId
	signers map[string]bool
	txId    string
}

func (tx *txContext) signedBy(key string) bool {
	return key != "" && tx.signers[key]
}

func (fl *FakeLedger) withSession(p map[string]interface{}, fn func(p map[string]interface{}, tx *txContext) (map[string]interface{}, *rpcError)) (interface{}, *rpcError) {
	sessionId, _ := paramString(p, "sessionId")
	sess, ok := fl.sessions[sessionId]
	if !ok {
		return nil, transportErr(common.JsonRpcErrorInternal, "session not set up")
	}
	tx := &txContext{
		session: sess,
		payer:   sess.operator,
		signers: map[string]bool{sess.operatorKey: true},
	}
	if ctp := paramMap(p, "commonTransactionParams"); ctp != nil {
		if raw, ok := ctp["signers"].([]interface{}); ok {
			for _, s := range raw {
				str, _ := s.(string)
				pk, err := keys.ParsePrivateKey(str)
				if err != nil {
					return nil, transportErr(common.JsonRpcErrorInternal, fmt.Sprintf("invalid signer: %v", err))
				}
				tx.signers[pk.PublicKey().StringRaw()] = true
			}
		}
		if s, ok := paramString(ctp, "transactionId"); ok && s != "" {
			txId, err := common.ParseTransactionId(s)
			if err != nil {
				return nil, transportErr(common.JsonRpcErrorInternal, fmt.Sprintf("invalid transactionId: %v", err))
			}
			tx.payer = txId.AccountId
			tx.txId = txId.String()
		}
	}

	payer, ok := fl.accounts[tx.payer]
	if !ok || payer.Deleted {
		return nil, domainErr("PAYER_ACCOUNT_NOT_FOUND")
	}
	if !tx.signedBy(payer.Key) {
		return nil, domainErr("INVALID_SIGNATURE")
	}

	res, rerr := fn(p, tx)
	if rerr != nil {
		if tx.txId != "" && rerr.Data != nil {
			fl.receipts[tx.txId] = map[string]interface{}{"status": rerr.Data["status"]}
		}
		return nil, rerr
	}
	res["status"] = "SUCCESS"
	if tx.txId != "" {
		receipt := map[string]interface{}{"status": "SUCCESS"}
		if id, ok := res["accountId"]; ok {
			receipt["accountId"] = id
		}
		fl.receipts[tx.txId] = receipt
	}
	return res, nil
}

func parseKeyParam(p map[string]interface{}) (string, bool, *rpcError) {
	s, ok := paramString(p, "key")
	if !ok {
		return "", false, nil
	}
	if pk, err := keys.ParsePrivateKey(s); err == nil && len(s) > 64 {
		return pk.PublicKey().StringRaw(), true, nil
	}
	n, err := keys.NormalizePublicKey(s)
	if err != nil || n == "" {
		return "", false, transportErr(common.JsonRpcErrorInternal, fmt.Sprintf("invalid key: %q", s))
	}
	return n, true, nil
}

func (fl *FakeLedger) createAccount(p map[string]interface{}, tx *txContext) (map[string]interface{}, *rpcError) {
	key, hasKey, rerr := parseKeyParam(p)
	if rerr != nil {
		return nil, rerr
	}
	if !hasKey {
		return nil, domainErr("KEY_REQUIRED")
	}
	balance, _, rerr := paramInt(p, "initialBalance")
	if rerr != nil {
		return nil, rerr
	}
	if balance < 0 {
		return nil, domainErr("INVALID_INITIAL_BALANCE")
	}
	memo, _ := paramString(p, "memo")
	if len(memo) > maxMemoBytes {
		return nil, domainErr("MEMO_TOO_LONG")
	}
	payer := fl.accounts[tx.payer]
	if payer.Balance < balance {
		return nil, domainErr("INSUFFICIENT_PAYER_BALANCE")
	}

	acct := &FakeAccount{
		Id:              common.NewEntityId(0, 0, fl.nextNum),
		Balance:         balance,
		Key:             key,
		Memo:            memo,
		AutoRenewPeriod: defaultRenew,
	}
	if rerr := applyAccountOptions(fl, acct, p); rerr != nil {
		return nil, rerr
	}
	fl.nextNum++

	updatedPayer := payer.clone()
	updatedPayer.Balance -= balance
	fl.putAccount(updatedPayer, false)
	fl.putAccount(acct, false)
	return map[string]interface{}{"accountId": acct.Id.String()}, nil
}

func applyAccountOptions(fl *FakeLedger, acct *FakeAccount, p map[string]interface{}) *rpcError {
	if v, ok := paramBool(p, "receiverSignatureRequired"); ok {
		acct.ReceiverSignatureRequired = v
	}
	if v, ok, rerr := paramInt(p, "maxAutoTokenAssociations"); rerr != nil {
		return rerr
	} else if ok {
		if v < -1 || v > 5000 {
			return domainErr("INVALID_MAX_AUTO_ASSOCIATIONS")
		}
		acct.MaxAutoTokenAssociations = v
	}
	if v, ok, rerr := paramInt(p, "autoRenewPeriod"); rerr != nil {
		return rerr
	} else if ok {
		if v < 2592000 || v > 8000001 {
			return domainErr("AUTORENEW_DURATION_NOT_IN_RANGE")
		}
		acct.AutoRenewPeriod = v
	}
	if v, ok := paramBool(p, "declineStakingReward"); ok {
		acct.DeclineStakingReward = v
	}
	if id, ok, rerr := paramEntity(p, "stakedAccountId"); rerr != nil {
		return rerr
	} else if ok {
		if target, exists := fl.accounts[id]; !exists || target.Deleted {
			return domainErr("INVALID_STAKING_ID")
		}
		acct.StakedAccountId = id.String()
		acct.StakedNodeId = nil
	}
	if v, ok, rerr := paramInt(p, "stakedNodeId"); rerr != nil {
		return rerr
	} else if ok {
		if v != fl.nodeId {
			return domainErr("INVALID_STAKING_ID")
		}
		acct.StakedNodeId = &v
		acct.StakedAccountId = ""
	}
	return nil
}

func (fl *FakeLedger) lookupLive(p map[string]interface{}, key string) (*FakeAccount, *rpcError) {
	id, ok, rerr := paramEntity(p, key)
	if rerr != nil {
		return nil, rerr
	}
	if !ok {
		return nil, domainErr("ACCOUNT_ID_DOES_NOT_EXIST")
	}
	acct, exists := fl.accounts[id]
	if !exists {
		return nil, domainErr("INVALID_ACCOUNT_ID")
	}
	if acct.Deleted {
		return nil, domainErr("ACCOUNT_DELETED")
	}
	return acct, nil
}

func (fl *FakeLedger) updateAccount(p map[string]interface{}, tx *txContext) (map[string]interface{}, *rpcError) {
	acct, rerr := fl.lookupLive(p, "accountId")
	if rerr != nil {
		return nil, rerr
	}
	if !tx.signedBy(acct.Key) {
		return nil, domainErr("INVALID_SIGNATURE")
	}

	updated := acct.clone()
	newKey, hasKey, rerr := parseKeyParam(p)
	if rerr != nil {
		return nil, rerr
	}
	if hasKey {
		if !tx.signedBy(newKey) {
			return nil, domainErr("INVALID_SIGNATURE")
		}
		updated.Key = newKey
	}
	if memo, ok := paramString(p, "memo"); ok {
		if len(memo) > maxMemoBytes {
			return nil, domainErr("MEMO_TOO_LONG")
		}
		updated.Memo = memo
	}
	if rerr := applyAccountOptions(fl, updated, p); rerr != nil {
		return nil, rerr
	}
	fl.putAccount(updated, false)
	return map[string]interface{}{}, nil
}

func (fl *FakeLedger) deleteAccount(p map[string]interface{}, tx *txContext) (map[string]interface{}, *rpcError) {
	acct, rerr := fl.lookupLive(p, "deleteAccountId")
	if rerr != nil {
		return nil, rerr
	}
	transferId, ok, rerr := paramEntity(p, "transferAccountId")
	if rerr != nil {
		return nil, rerr
	}
	if !ok {
		return nil, domainErr("ACCOUNT_ID_DOES_NOT_EXIST")
	}
	if transferId == acct.Id {
		return nil, domainErr("TRANSFER_ACCOUNT_SAME_AS_DELETE_ACCOUNT")
	}
	beneficiary, exists := fl.accounts[transferId]
	if !exists || beneficiary.Deleted {
		return nil, domainErr("INVALID_TRANSFER_ACCOUNT_ID")
	}
	if !tx.signedBy(acct.Key) {
		return nil, domainErr("INVALID_SIGNATURE")
	}

	updatedBeneficiary := beneficiary.clone()
	updatedBeneficiary.Balance += acct.Balance
	deleted := acct.clone()
	deleted.Balance = 0
	deleted.Deleted = true
	fl.putAccount(updatedBeneficiary, false)
	fl.putAccount(deleted, false)
	return map[string]interface{}{}, nil
}

func (fl *FakeLedger) transferCrypto(p map[string]interface{}, tx *txContext) (map[string]interface{}, *rpcError) {
	raw, ok := p["transfers"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, domainErr("EMPTY_TRANSACTION_BODY")
	}
	deltas := map[common.EntityId]int64{}
	var order []common.EntityId
	var sum int64
	for _, t := range raw {
		tm, _ := t.(map[string]interface{})
		hbar := paramMap(tm, "hbar")
		if hbar == nil {
			return nil, transportErr(common.JsonRpcErrorInvalidParams, "only hbar transfers are supported")
		}
		id, ok, rerr := paramEntity(hbar, "accountId")
		if rerr != nil {
			return nil, rerr
		}
		if !ok {
			return nil, domainErr("INVALID_ACCOUNT_ID")
		}
		amount, _, rerr := paramInt(hbar, "amount")
		if rerr != nil {
			return nil, rerr
		}
		if _, seen := deltas[id]; !seen {
			order = append(order, id)
		}
		deltas[id] += amount
		sum += amount
	}
	if sum != 0 {
		return nil, domainErr("INVALID_ACCOUNT_AMOUNTS")
	}

	updated := make([]*FakeAccount, 0, len(order))
	for _, id := range order {
		acct, exists := fl.accounts[id]
		if !exists {
			return nil, domainErr("INVALID_ACCOUNT_ID")
		}
		if acct.Deleted {
			return nil, domainErr("ACCOUNT_DELETED")
		}
		d := deltas[id]
		if d < 0 && !tx.signedBy(acct.Key) {
			return nil, domainErr("INVALID_SIGNATURE")
		}
		if d > 0 && acct.ReceiverSignatureRequired && !tx.signedBy(acct.Key) {
			return nil, domainErr("INVALID_SIGNATURE")
		}
		if acct.Balance+d < 0 {
			return nil, domainErr("INSUFFICIENT_ACCOUNT_BALANCE")
		}
		u := acct.clone()
		u.Balance += d
		updated = append(updated, u)
	}
	for _, u := range updated {
		fl.putAccount(u, false)
	}
	return map[string]interface{}{}, nil
}
