package oracle

import (
	"context"

	"github.com/erpc/tck/clients"
	"github.com/erpc/tck/common"
	"github.com/rs/zerolog"
)

const GroundTruthName = "ground-truth"

// Domain statuses the ground-truth service uses to say an entity does not exist (any more).
var groundTruthNotFoundStatuses = []string{
	"INVALID_ACCOUNT_ID",
	"ACCOUNT_DELETED",
	"INVALID_CONTRACT_ID",
	"CONTRACT_DELETED",
	"INVALID_TOKEN_ID",
	"TOKEN_WAS_DELETED",
	"INVALID_TOPIC_ID",
	"INVALID_SCHEDULE_ID",
	"INVALID_NODE_ID",
	"INVALID_TRANSACTION_ID",
	"RECEIPT_NOT_FOUND",
}

// GroundTruth queries the synchronous query gateway over JSON-RPC. It is trusted immediately
// after the SUT reports success.
type GroundTruth struct {
	logger *zerolog.Logger
	rpc    clients.HttpJsonRpcClient
}

var _ Oracle = (*GroundTruth)(nil)

func NewGroundTruth(logger *zerolog.Logger, rpc clients.HttpJsonRpcClient) *GroundTruth {
	lg := logger.With().Str("component", "oracle").Str("oracle", GroundTruthName).Logger()
	return &GroundTruth{logger: &lg, rpc: rpc}
}

func (g *GroundTruth) Name() string { return GroundTruthName }

func (g *GroundTruth) Consistency() Consistency { return ConsistencyImmediate }

func (g *GroundTruth) Exposes(kind common.EntityKind) []string {
	return copyFields(kind, allFields)
}

func (g *GroundTruth) Query(ctx context.Context, ref common.EntityRef) (common.Snapshot, error) {
	return dispatch(ctx, g, ref)
}

func (g *GroundTruth) call(ctx context.Context, ref common.EntityRef, method string, params map[string]interface{}, out interface{}) error {
	jr, err := g.rpc.Call(ctx, method, params)
	if err != nil {
		if common.IsDomainStatus(err, groundTruthNotFoundStatuses...) {
			return common.NewErrEntityNotFound(GroundTruthName, ref, err)
		}
		return err
	}
	if err := jr.ParseResult(out); err != nil {
		return common.NewErrTransportFailure(
			common.JsonRpcErrorMalformedResponse,
			"could not decode ground-truth result",
			err,
			map[string]interface{}{"method": method},
		)
	}
	g.logger.Trace().Str("method", method).Str("entity", ref.String()).Msg("ground-truth query succeeded")
	return nil
}

type gtAccountInfo struct {
	AccountId                     string    `json:"accountId"`
	Balance                       FlexInt64 `json:"balance"`
	Key                           string    `json:"key"`
	Memo                          string    `json:"memo"`
	Deleted                       bool      `json:"deleted"`
	ReceiverSignatureRequired     bool      `json:"receiverSignatureRequired"`
	MaxAutomaticTokenAssociations FlexInt64 `json:"maxAutomaticTokenAssociations"`
	AutoRenewPeriod               FlexInt64 `json:"autoRenewPeriod"`
	StakedAccountId               *string   `json:"stakedAccountId"`
	StakedNodeId                  *int64    `json:"stakedNodeId"`
	DeclineStakingReward          bool      `json:"declineStakingReward"`
	EvmAddress                    string    `json:"evmAddress"`
}

func (g *GroundTruth) Account(ctx context.Context, id common.EntityId) (*common.AccountState, error) {
	ref := common.AccountRef(id)
	return observe(ctx, GroundTruthName, ref, func(ctx context.Context) (*common.AccountState, error) {
		var info gtAccountInfo
		if err := g.call(ctx, ref, "getAccountInfo", map[string]interface{}{"accountId": id.String()}, &info); err != nil {
			return nil, err
		}
		return &common.AccountState{
			AccountId:                     id,
			Balance:                       info.Balance.Int64(),
			Key:                           normalizeKey(info.Key),
			Memo:                          info.Memo,
			Deleted:                       info.Deleted,
			ReceiverSignatureRequired:     info.ReceiverSignatureRequired,
			MaxAutomaticTokenAssociations: info.MaxAutomaticTokenAssociations.Int64(),
			AutoRenewPeriod:               info.AutoRenewPeriod.Int64(),
			StakedAccountId:               normalizeEntityString(info.StakedAccountId),
			StakedNodeId:                  normalizeStakedNode(info.StakedNodeId),
			DeclineStakingReward:          info.DeclineStakingReward,
			EvmAddress:                    normalizeEvmAddress(info.EvmAddress),
		}, nil
	})
}

type gtContractInfo struct {
	ContractId                    string    `json:"contractId"`
	AdminKey                      string    `json:"adminKey"`
	Memo                          string    `json:"memo"`
	AutoRenewAccountId            *string   `json:"autoRenewAccountId"`
	AutoRenewPeriod               FlexInt64 `json:"autoRenewPeriod"`
	MaxAutomaticTokenAssociations FlexInt64 `json:"maxAutomaticTokenAssociations"`
	EvmAddress                    string    `json:"evmAddress"`
	Deleted                       bool      `json:"deleted"`
}

func (g *GroundTruth) Contract(ctx context.Context, id common.EntityId) (*common.ContractState, error) {
	ref := common.ContractRef(id)
	return observe(ctx, GroundTruthName, ref, func(ctx context.Context) (*common.ContractState, error) {
		var info gtContractInfo
		if err := g.call(ctx, ref, "getContractInfo", map[string]interface{}{"contractId": id.String()}, &info); err != nil {
			return nil, err
		}
		return &common.ContractState{
			ContractId:                    id,
			AdminKey:                      normalizeKey(info.AdminKey),
			Memo:                          info.Memo,
			AutoRenewAccountId:            normalizeEntityString(info.AutoRenewAccountId),
			AutoRenewPeriod:               info.AutoRenewPeriod.Int64(),
			MaxAutomaticTokenAssociations: info.MaxAutomaticTokenAssociations.Int64(),
			EvmAddress:                    normalizeEvmAddress(info.EvmAddress),
			Deleted:                       info.Deleted,
		}, nil
	})
}

type gtTokenInfo struct {
	TokenId           string    `json:"tokenId"`
	Name              string    `json:"name"`
	Symbol            string    `json:"symbol"`
	Decimals          FlexInt64 `json:"decimals"`
	TotalSupply       FlexInt64 `json:"totalSupply"`
	TreasuryAccountId *string   `json:"treasuryAccountId"`
	AdminKey          string    `json:"adminKey"`
	TokenType         string    `json:"tokenType"`
	SupplyType        string    `json:"supplyType"`
	MaxSupply         FlexInt64 `json:"maxSupply"`
	FreezeDefault     bool      `json:"freezeDefault"`
	Memo              string    `json:"memo"`
	Deleted           bool      `json:"deleted"`
}

func (g *GroundTruth) Token(ctx context.Context, id common.EntityId) (*common.TokenState, error) {
	ref := common.TokenRef(id)
	return observe(ctx, GroundTruthName, ref, func(ctx context.Context) (*common.TokenState, error) {
		var info gtTokenInfo
		if err := g.call(ctx, ref, "getTokenInfo", map[string]interface{}{"tokenId": id.String()}, &info); err != nil {
			return nil, err
		}
		return &common.TokenState{
			TokenId:           id,
			Name:              info.Name,
			Symbol:            info.Symbol,
			Decimals:          info.Decimals.Int64(),
			TotalSupply:       info.TotalSupply.Int64(),
			TreasuryAccountId: normalizeEntityString(info.TreasuryAccountId),
			AdminKey:          normalizeKey(info.AdminKey),
			TokenType:         info.TokenType,
			SupplyType:        info.SupplyType,
			MaxSupply:         info.MaxSupply.Int64(),
			FreezeDefault:     info.FreezeDefault,
			Memo:              info.Memo,
			Deleted:           info.Deleted,
		}, nil
	})
}

type gtTopicInfo struct {
	TopicId            string    `json:"topicId"`
	Memo               string    `json:"memo"`
	AdminKey           string    `json:"adminKey"`
	SubmitKey          string    `json:"submitKey"`
	AutoRenewAccountId *string   `json:"autoRenewAccountId"`
	AutoRenewPeriod    FlexInt64 `json:"autoRenewPeriod"`
	Deleted            bool      `json:"deleted"`
}

func (g *GroundTruth) Topic(ctx context.Context, id common.EntityId) (*common.TopicState, error) {
	ref := common.TopicRef(id)
	return observe(ctx, GroundTruthName, ref, func(ctx context.Context) (*common.TopicState, error) {
		var info gtTopicInfo
		if err := g.call(ctx, ref, "getTopicInfo", map[string]interface{}{"topicId": id.String()}, &info); err != nil {
			return nil, err
		}
		return &common.TopicState{
			TopicId:            id,
			Memo:               info.Memo,
			AdminKey:           normalizeKey(info.AdminKey),
			SubmitKey:          normalizeKey(info.SubmitKey),
			AutoRenewAccountId: normalizeEntityString(info.AutoRenewAccountId),
			AutoRenewPeriod:    info.AutoRenewPeriod.Int64(),
			Deleted:            info.Deleted,
		}, nil
	})
}

type gtScheduleInfo struct {
	ScheduleId       string  `json:"scheduleId"`
	CreatorAccountId *string `json:"creatorAccountId"`
	PayerAccountId   *string `json:"payerAccountId"`
	AdminKey         string  `json:"adminKey"`
	Memo             string  `json:"memo"`
	ExecutedAt       string  `json:"executionTime"`
	DeletedAt        string  `json:"deletionTime"`
	WaitForExpiry    bool    `json:"waitForExpiry"`
}

func (g *GroundTruth) Schedule(ctx context.Context, id common.EntityId) (*common.ScheduleState, error) {
	ref := common.ScheduleRef(id)
	return observe(ctx, GroundTruthName, ref, func(ctx context.Context) (*common.ScheduleState, error) {
		var info gtScheduleInfo
		if err := g.call(ctx, ref, "getScheduleInfo", map[string]interface{}{"scheduleId": id.String()}, &info); err != nil {
			return nil, err
		}
		return &common.ScheduleState{
			ScheduleId:       id,
			CreatorAccountId: normalizeEntityString(info.CreatorAccountId),
			PayerAccountId:   normalizeEntityString(info.PayerAccountId),
			AdminKey:         normalizeKey(info.AdminKey),
			Memo:             info.Memo,
			Executed:         info.ExecutedAt != "",
			Deleted:          info.DeletedAt != "",
			WaitForExpiry:    info.WaitForExpiry,
		}, nil
	})
}

type gtServiceEndpoint struct {
	IpAddressV4 string    `json:"ipAddressV4"`
	Port        FlexInt64 `json:"port"`
	DomainName  string    `json:"domainName"`
}

type gtNodeInfo struct {
	NodeId           FlexInt64           `json:"nodeId"`
	NodeAccountId    string              `json:"nodeAccountId"`
	Description      string              `json:"description"`
	ServiceEndpoints []gtServiceEndpoint `json:"serviceEndpoints"`
}

func (g *GroundTruth) Node(ctx context.Context, nodeId int64) (*common.NodeState, error) {
	ref := common.NodeRef(nodeId)
	return observe(ctx, GroundTruthName, ref, func(ctx context.Context) (*common.NodeState, error) {
		var info gtNodeInfo
		if err := g.call(ctx, ref, "getNodeInfo", map[string]interface{}{"nodeId": nodeId}, &info); err != nil {
			return nil, err
		}
		eps := make([]string, 0, len(info.ServiceEndpoints))
		for _, ep := range info.ServiceEndpoints {
			eps = append(eps, formatEndpoint(ep.IpAddressV4, ep.DomainName, ep.Port.Int64()))
		}
		return &common.NodeState{
			NodeId:           nodeId,
			NodeAccountId:    info.NodeAccountId,
			Description:      info.Description,
			ServiceEndpoints: sortedEndpoints(eps),
		}, nil
	})
}

// AccountBalance is the cheap balance-only query.
func (g *GroundTruth) AccountBalance(ctx context.Context, id common.EntityId) (int64, error) {
	ref := common.AccountRef(id)
	return observe(ctx, GroundTruthName, ref, func(ctx context.Context) (int64, error) {
		var out struct {
			Balance FlexInt64 `json:"balance"`
		}
		if err := g.call(ctx, ref, "getAccountBalance", map[string]interface{}{"accountId": id.String()}, &out); err != nil {
			return 0, err
		}
		return out.Balance.Int64(), nil
	})
}

type gtReceipt struct {
	Status     string `json:"status"`
	AccountId  string `json:"accountId"`
	TokenId    string `json:"tokenId"`
	TopicId    string `json:"topicId"`
	ContractId string `json:"contractId"`
	ScheduleId string `json:"scheduleId"`
}

// Receipt returns the final outcome of txId as recorded by the network.
func (g *GroundTruth) Receipt(ctx context.Context, txId common.TransactionId) (*common.TransactionReceipt, error) {
	ref := transactionRef(txId)
	return observe(ctx, GroundTruthName, ref, func(ctx context.Context) (*common.TransactionReceipt, error) {
		var r gtReceipt
		if err := g.call(ctx, ref, "getTransactionReceipt", map[string]interface{}{"transactionId": txId.String()}, &r); err != nil {
			return nil, err
		}
		return &common.TransactionReceipt{
			TransactionId: txId,
			Status:        r.Status,
			AccountId:     r.AccountId,
			TokenId:       r.TokenId,
			TopicId:       r.TopicId,
			ContractId:    r.ContractId,
			ScheduleId:    r.ScheduleId,
		}, nil
	})
}
