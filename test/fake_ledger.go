package test

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/erpc/tck/common"
	"github.com/erpc/tck/keys"
)

type JSONRPCRequest struct {
	Jsonrpc string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
	ID      interface{}            `json:"id"`
}

type JSONRPCResponse struct {
	Jsonrpc string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type rpcError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (e *rpcError) Error() string { return e.Message }

// domainErr is how the ledger rejects an operation it received.
func domainErr(status string) *rpcError {
	return &rpcError{
		Code:    common.JsonRpcErrorLedger,
		Message: "Hiero error",
		Data:    map[string]interface{}{"status": status, "message": status},
	}
}

func transportErr(code common.JsonRpcErrorNumber, msg string) *rpcError {
	return &rpcError{Code: int(code), Message: msg}
}

// FakeAccount is the ledger's view of one account.
type FakeAccount struct {
	Id                        common.EntityId
	Balance                   int64
	Key                       string
	Memo                      string
	Deleted                   bool
	ReceiverSignatureRequired bool
	MaxAutoTokenAssociations  int64
	AutoRenewPeriod           int64
	StakedAccountId           string
	StakedNodeId              *int64
	DeclineStakingReward      bool
}

func (a *FakeAccount) clone() *FakeAccount {
	if a == nil {
		return nil
	}
	c := *a
	if a.StakedNodeId != nil {
		n := *a.StakedNodeId
		c.StakedNodeId = &n
	}
	return &c
}

type pendingWrite struct {
	state     *FakeAccount
	readsLeft int
}

// replicaAccount lags the ledger by a number of reads.
type replicaAccount struct {
	visible *FakeAccount
	pending []pendingWrite
	tamper  func(*FakeAccount)
}

// Call is one control request as seen by the fake.
type Call struct {
	Method    string
	SessionId string
	Operator  string
}

type fakeSession struct {
	operator    common.EntityId
	operatorKey string
}

type injectedError struct {
	method string
	err    *rpcError
}

// FakeLedger is an in-memory ledger that serves the control protocol on "/", the ground-truth
// gateway on "/gt" and a read-replica REST API under "/api/v1/". Writes reach the replica only
// after ReplicaLag replica reads of the same entity.
type FakeLedger struct {
	ReplicaLag int

	mu         sync.Mutex
	accounts   map[common.EntityId]*FakeAccount
	replica    map[common.EntityId]*replicaAccount
	sessions   map[string]*fakeSession
	receipts   map[string]map[string]interface{}
	calls      []Call
	injected   []injectedError
	nextNum    int64
	operator   keys.Identity
	nodeId     int64
	nodeAcct   common.EntityId
	nodeEps    []string
	server     *httptest.Server
	httpServer *http.Server
}

const (
	GenesisBalance = int64(50_000_000_000_00000000)
	defaultRenew   = int64(7776000)
	maxMemoBytes   = 100
)

func NewFakeLedger() (*FakeLedger, error) {
	opKey, err := keys.GeneratePrivateKey(keys.KeyTypeEd25519)
	if err != nil {
		return nil, err
	}
	opId := common.NewEntityId(0, 0, 2)
	fl := &FakeLedger{
		accounts: map[common.EntityId]*FakeAccount{},
		replica:  map[common.EntityId]*replicaAccount{},
		sessions: map[string]*fakeSession{},
		receipts: map[string]map[string]interface{}{},
		nextNum:  1001,
		operator: keys.Identity{AccountId: opId, PrivateKey: opKey},
		nodeId:   0,
		nodeAcct: common.NewEntityId(0, 0, 3),
		nodeEps:  []string{"127.0.0.1:50211"},
	}
	fl.putAccount(&FakeAccount{
		Id:              opId,
		Balance:         GenesisBalance,
		Key:             opKey.PublicKey().StringRaw(),
		AutoRenewPeriod: defaultRenew,
	}, true)
	fl.putAccount(&FakeAccount{Id: fl.nodeAcct, Key: opKey.PublicKey().StringRaw(), AutoRenewPeriod: defaultRenew}, true)
	return fl, nil
}

// Operator is the genesis account that funds everything.
func (fl *FakeLedger) Operator() keys.Identity {
	return fl.operator
}

// Start serves the fake on a random local port and returns its base url.
func (fl *FakeLedger) Start() string {
	fl.server = httptest.NewServer(fl.Handler())
	return fl.server.URL
}

// ListenAndServe serves the fake on addr until Stop is called.
func (fl *FakeLedger) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	fl.mu.Lock()
	fl.httpServer = &http.Server{Handler: fl.Handler(), ReadHeaderTimeout: 5 * time.Second}
	srv := fl.httpServer
	fl.mu.Unlock()
	return srv.Serve(ln)
}

func (fl *FakeLedger) Stop() error {
	if fl.server != nil {
		fl.server.Close()
	}
	fl.mu.Lock()
	srv := fl.httpServer
	fl.mu.Unlock()
	if srv != nil {
		return srv.Close()
	}
	return nil
}

func (fl *FakeLedger) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", fl.handleControl)
	mux.HandleFunc("/gt", fl.handleGroundTruth)
	mux.HandleFunc("/api/v1/", fl.handleReplica)
	return mux
}

// Calls returns every control request received so far.
func (fl *FakeLedger) Calls() []Call {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	out := make([]Call, len(fl.calls))
	copy(out, fl.calls)
	return out
}

// SessionOperator is the operator the SUT has bound to sessionId.
func (fl *FakeLedger) SessionOperator(sessionId string) (string, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	s, ok := fl.sessions[sessionId]
	if !ok {
		return "", false
	}
	return s.operator.String(), true
}

// InjectError makes the next call of method fail with the given code. A non-empty status
// turns it into a ledger rejection.
func (fl *FakeLedger) InjectError(method string, code int, message string, status string) {
	e := &rpcError{Code: code, Message: message}
	if status != "" {
		e.Data = map[string]interface{}{"status": status}
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.injected = append(fl.injected, injectedError{method: method, err: e})
}

// Tamper permanently alters what the replica reports for id.
func (fl *FakeLedger) Tamper(id common.EntityId, fn func(*FakeAccount)) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	r, ok := fl.replica[id]
	if !ok {
		r = &replicaAccount{}
		fl.replica[id] = r
	}
	r.tamper = fn
}

// Account is the current ledger state of id.
func (fl *FakeLedger) Account(id common.EntityId) (*FakeAccount, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	a, ok := fl.accounts[id]
	return a.clone(), ok
}

// putAccount records a write. Must be called with mu held, except from the constructor.
func (fl *FakeLedger) putAccount(a *FakeAccount, immediate bool) {
	fl.accounts[a.Id] = a
	r, ok := fl.replica[a.Id]
	if !ok {
		r = &replicaAccount{}
		fl.replica[a.Id] = r
	}
	if immediate || fl.ReplicaLag <= 0 {
		r.visible = a.clone()
		r.pending = nil
		return
	}
	r.pending = append(r.pending, pendingWrite{state: a.clone(), readsLeft: fl.ReplicaLag})
}

// replicaRead advances the lag of id by one read and returns what the replica shows.
func (fl *FakeLedger) replicaRead(id common.EntityId) *FakeAccount {
	r, ok := fl.replica[id]
	if !ok {
		return nil
	}
	kept := r.pending[:0]
	for _, p := range r.pending {
		p.readsLeft--
		if p.readsLeft < 0 {
			r.visible = p.state
			continue
		}
		kept = append(kept, p)
	}
	r.pending = kept
	out := r.visible.clone()
	if out != nil && r.tamper != nil {
		r.tamper(out)
	}
	return out
}

func (fl *FakeLedger) takeInjected(method string) *rpcError {
	for i, inj := range fl.injected {
		if inj.method == method {
			fl.injected = append(fl.injected[:i], fl.injected[i+1:]...)
			return inj.err
		}
	}
	return nil
}

func readRequest(r *http.Request) (*JSONRPCRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var req JSONRPCRequest
	if err := common.SonicCfg.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	if req.Params == nil {
		req.Params = map[string]interface{}{}
	}
	return &req, nil
}

func writeResponse(w http.ResponseWriter, id interface{}, result interface{}, rerr *rpcError) {
	resp := JSONRPCResponse{Jsonrpc: "2.0", ID: id}
	if rerr != nil {
		resp.Error = rerr
	} else {
		resp.Result = result
	}
	b, err := common.SonicCfg.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := common.SonicCfg.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

//
// Param helpers
//

func paramString(p map[string]interface{}, key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	}
	return fmt.Sprintf("%v", v), true
}

func paramInt(p map[string]interface{}, key string) (int64, bool, *rpcError) {
	s, ok := paramString(p, key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, transportErr(common.JsonRpcErrorInvalidParams, fmt.Sprintf("%s must be an integer", key))
	}
	return n, true, nil
}

func paramBool(p map[string]interface{}, key string) (bool, bool) {
	b, ok := p[key].(bool)
	return b, ok
}

func paramMap(p map[string]interface{}, key string) map[string]interface{} {
	m, _ := p[key].(map[string]interface{})
	return m
}

func paramEntity(p map[string]interface{}, key string) (common.EntityId, bool, *rpcError) {
	s, ok := paramString(p, key)
	if !ok || s == "" {
		return common.EntityId{}, false, nil
	}
	id, err := common.ParseEntityId(s)
	if err != nil {
		return common.EntityId{}, false, transportErr(common.JsonRpcErrorInternal, fmt.Sprintf("invalid %s: %v", key, err))
	}
	return id, true, nil
}

func trimPathPrefix(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}
