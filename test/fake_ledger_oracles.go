package test

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/keys"
)

func (fl *FakeLedger) handleGroundTruth(w http.ResponseWriter, r *http.Request) {
	req, err := readRequest(r)
	if err != nil {
		writeResponse(w, nil, nil, transportErr(common.JsonRpcErrorParse, "Parse error"))
		return
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	if inj := fl.takeInjected("gt." + req.Method); inj != nil {
		writeResponse(w, req.ID, nil, inj)
		return
	}

	var (
		result interface{}
		rerr   *rpcError
	)
	switch req.Method {
	case "getAccountInfo":
		var a *FakeAccount
		if a, rerr = fl.lookupLive(req.Params, "accountId"); rerr == nil {
			result = groundTruthAccount(a)
		}
	case "getAccountBalance":
		var a *FakeAccount
		if a, rerr = fl.lookupLive(req.Params, "accountId"); rerr == nil {
			result = map[string]interface{}{"accountId": a.Id.String(), "balance": a.Balance}
		}
	case "getNodeInfo":
		n, _, perr := paramInt(req.Params, "nodeId")
		switch {
		case perr != nil:
			rerr = perr
		case n != fl.nodeId:
			rerr = domainErr("INVALID_NODE_ID")
		default:
			result = fl.groundTruthNode()
		}
	case "getTransactionReceipt":
		txId, _ := paramString(req.Params, "transactionId")
		if receipt, ok := fl.receipts[txId]; ok {
			result = receipt
		} else {
			rerr = domainErr("RECEIPT_NOT_FOUND")
		}
	default:
		rerr = transportErr(common.JsonRpcErrorMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
	writeResponse(w, req.ID, result, rerr)
}

func groundTruthAccount(a *FakeAccount) map[string]interface{} {
	out := map[string]interface{}{
		"accountId":                     a.Id.String(),
		"balance":                       strconv.FormatInt(a.Balance, 10),
		"key":                           derPublicKey(a.Key),
		"memo":                          a.Memo,
		"deleted":                       a.Deleted,
		"receiverSignatureRequired":     a.ReceiverSignatureRequired,
		"maxAutomaticTokenAssociations": a.MaxAutoTokenAssociations,
		"autoRenewPeriod":               a.AutoRenewPeriod,
		"declineStakingReward":          a.DeclineStakingReward,
		"evmAddress":                    evmAddress(a.Id),
	}
	if a.StakedAccountId != "" {
		out["stakedAccountId"] = a.StakedAccountId
	}
	if a.StakedNodeId != nil {
		out["stakedNodeId"] = *a.StakedNodeId
	}
	return out
}

func (fl *FakeLedger) groundTruthNode() map[string]interface{} {
	eps := make([]interface{}, 0, len(fl.nodeEps))
	for _, ep := range fl.nodeEps {
		host, port, _ := net.SplitHostPort(ep)
		p, _ := strconv.Atoi(port)
		eps = append(eps, map[string]interface{}{"ipAddressV4": host, "port": p})
	}
	return map[string]interface{}{
		"nodeId":           fl.nodeId,
		"nodeAccountId":    fl.nodeAcct.String(),
		"description":      "fake node",
		"serviceEndpoints": eps,
	}
}

func (fl *FakeLedger) handleReplica(w http.ResponseWriter, r *http.Request) {
	path := trimPathPrefix(r.URL.Path, "/api/v1")

	fl.mu.Lock()
	defer fl.mu.Unlock()

	switch {
	case strings.HasPrefix(path, "accounts/"):
		id, err := common.ParseEntityId(strings.TrimPrefix(path, "accounts/"))
		if err != nil {
			writeMirrorError(w, http.StatusBadRequest, "Invalid parameter: idOrAliasOrEvmAddress")
			return
		}
		a := fl.replicaRead(id)
		if a == nil {
			writeMirrorError(w, http.StatusNotFound, "Not found")
			return
		}
		writeJSON(w, http.StatusOK, mirrorAccount(a))
	case path == "network/nodes":
		nodes := []interface{}{}
		if q := r.URL.Query().Get("node.id"); q == "" || q == fmt.Sprintf("eq:%d", fl.nodeId) {
			nodes = append(nodes, fl.mirrorNode())
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": nodes})
	default:
		writeMirrorError(w, http.StatusNotFound, "Not found")
	}
}

func writeMirrorError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"_status": map[string]interface{}{
			"messages": []interface{}{map[string]interface{}{"message": msg}},
		},
	})
}

func mirrorAccount(a *FakeAccount) map[string]interface{} {
	out := map[string]interface{}{
		"account":                          a.Id.String(),
		"balance":                          map[string]interface{}{"balance": a.Balance, "timestamp": "0.0"},
		"memo":                             a.Memo,
		"deleted":                          a.Deleted,
		"receiver_sig_required":            a.ReceiverSignatureRequired,
		"max_automatic_token_associations": a.MaxAutoTokenAssociations,
		"auto_renew_period":                a.AutoRenewPeriod,
		"decline_reward":                   a.DeclineStakingReward,
		"evm_address":                      "0x" + evmAddress(a.Id),
		"staked_account_id":                nil,
		"staked_node_id":                   -1,
		"key":                              nil,
	}
	if a.Key != "" {
		out["key"] = map[string]interface{}{"_type": "ED25519", "key": a.Key}
	}
	if a.StakedAccountId != "" {
		out["staked_account_id"] = a.StakedAccountId
	}
	if a.StakedNodeId != nil {
		out["staked_node_id"] = *a.StakedNodeId
	}
	return out
}

func (fl *FakeLedger) mirrorNode() map[string]interface{} {
	eps := make([]interface{}, 0, len(fl.nodeEps))
	for _, ep := range fl.nodeEps {
		host, port, _ := net.SplitHostPort(ep)
		p, _ := strconv.Atoi(port)
		eps = append(eps, map[string]interface{}{"ip_address_v4": host, "port": p, "domain_name": ""})
	}
	return map[string]interface{}{
		"node_id":           fl.nodeId,
		"node_account_id":   fl.nodeAcct.String(),
		"description":       "fake node",
		"service_endpoints": eps,
	}
}

// derPublicKey renders a stored raw key the way the ground truth reports keys.
func derPublicKey(raw string) string {
	pub, err := keys.ParsePublicKey(raw)
	if err != nil {
		return raw
	}
	return pub.StringDer()
}

// evmAddress is the long-zero address of id.
func evmAddress(id common.EntityId) string {
	return fmt.Sprintf("%08x%016x%016x", uint32(id.Shard), uint64(id.Realm), uint64(id.Num))
}
