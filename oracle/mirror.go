package oracle

import (
	"context"
	"fmt"
	"net/url"

	"github.com/erpc/tck/clients"
	"github.com/erpc/tck/common"
	"github.com/rs/zerolog"
)

const MirrorRestName = "read-replica"

// MirrorRest reads entity state from the read replica's REST API. It lags the network and
// must only be consulted inside a retry loop.
type MirrorRest struct {
	logger *zerolog.Logger
	rest   clients.HttpRestClient
}

var _ Oracle = (*MirrorRest)(nil)

func NewMirrorRest(logger *zerolog.Logger, rest clients.HttpRestClient) *MirrorRest {
	lg := logger.With().Str("component", "oracle").Str("oracle", MirrorRestName).Logger()
	return &MirrorRest{logger: &lg, rest: rest}
}

func (m *MirrorRest) Name() string { return MirrorRestName }

func (m *MirrorRest) Consistency() Consistency { return ConsistencyEventual }

func (m *MirrorRest) Exposes(kind common.EntityKind) []string {
	return copyFields(kind, mirrorRestFields)
}

func (m *MirrorRest) Query(ctx context.Context, ref common.EntityRef) (common.Snapshot, error) {
	return dispatch(ctx, m, ref)
}

// The replica does not publish topic auto-renew details, so those are left to the ground truth.
var mirrorRestFields = map[common.EntityKind][]string{
	common.EntityKindAccount:  allFields[common.EntityKindAccount],
	common.EntityKindContract: allFields[common.EntityKindContract],
	common.EntityKindToken:    allFields[common.EntityKindToken],
	common.EntityKindTopic: {
		common.FieldTopicId, common.FieldMemo, common.FieldAdminKey, common.FieldSubmitKey, common.FieldDeleted,
	},
	common.EntityKindSchedule: allFields[common.EntityKindSchedule],
	common.EntityKindNode:     allFields[common.EntityKindNode],
}

func (m *MirrorRest) get(ctx context.Context, ref common.EntityRef, path string, query url.Values, out interface{}) error {
	err := m.rest.Get(ctx, path, query, out)
	if err == nil {
		return nil
	}
	if clients.IsHttpNotFound(err) {
		return common.NewErrEntityNotFound(MirrorRestName, ref, err)
	}
	return err
}

type mirrorAccount struct {
	Account string `json:"account"`
	Balance struct {
		Balance FlexInt64 `json:"balance"`
	} `json:"balance"`
	Key                           *MirrorKey `json:"key"`
	Memo                          string     `json:"memo"`
	Deleted                       bool       `json:"deleted"`
	ReceiverSigRequired           bool       `json:"receiver_sig_required"`
	MaxAutomaticTokenAssociations FlexInt64  `json:"max_automatic_token_associations"`
	AutoRenewPeriod               FlexInt64  `json:"auto_renew_period"`
	StakedAccountId               *string    `json:"staked_account_id"`
	StakedNodeId                  *int64     `json:"staked_node_id"`
	DeclineReward                 bool       `json:"decline_reward"`
	EvmAddress                    string     `json:"evm_address"`
}

func (m *MirrorRest) Account(ctx context.Context, id common.EntityId) (*common.AccountState, error) {
	ref := common.AccountRef(id)
	return observe(ctx, MirrorRestName, ref, func(ctx context.Context) (*common.AccountState, error) {
		var a mirrorAccount
		if err := m.get(ctx, ref, "/api/v1/accounts/"+id.String(), nil, &a); err != nil {
			return nil, err
		}
		return &common.AccountState{
			AccountId:                     id,
			Balance:                       a.Balance.Balance.Int64(),
			Key:                           a.Key.normalized(),
			Memo:                          a.Memo,
			Deleted:                       a.Deleted,
			ReceiverSignatureRequired:     a.ReceiverSigRequired,
			MaxAutomaticTokenAssociations: a.MaxAutomaticTokenAssociations.Int64(),
			AutoRenewPeriod:               a.AutoRenewPeriod.Int64(),
			StakedAccountId:               normalizeEntityString(a.StakedAccountId),
			StakedNodeId:                  normalizeStakedNode(a.StakedNodeId),
			DeclineStakingReward:          a.DeclineReward,
			EvmAddress:                    normalizeEvmAddress(a.EvmAddress),
		}, nil
	})
}

// The replica reports -1 when an account is not staked to a node.
func normalizeStakedNode(n *int64) *int64 {
	if n == nil || *n < 0 {
		return nil
	}
	return n
}

type mirrorContract struct {
	ContractId                    string     `json:"contract_id"`
	AdminKey                      *MirrorKey `json:"admin_key"`
	Memo                          string     `json:"memo"`
	AutoRenewAccount              *string    `json:"auto_renew_account"`
	AutoRenewPeriod               FlexInt64  `json:"auto_renew_period"`
	MaxAutomaticTokenAssociations FlexInt64  `json:"max_automatic_token_associations"`
	EvmAddress                    string     `json:"evm_address"`
	Deleted                       bool       `json:"deleted"`
}

func (m *MirrorRest) Contract(ctx context.Context, id common.EntityId) (*common.ContractState, error) {
	ref := common.ContractRef(id)
	return observe(ctx, MirrorRestName, ref, func(ctx context.Context) (*common.ContractState, error) {
		var c mirrorContract
		if err := m.get(ctx, ref, "/api/v1/contracts/"+id.String(), nil, &c); err != nil {
			return nil, err
		}
		return &common.ContractState{
			ContractId:                    id,
			AdminKey:                      c.AdminKey.normalized(),
			Memo:                          c.Memo,
			AutoRenewAccountId:            normalizeEntityString(c.AutoRenewAccount),
			AutoRenewPeriod:               c.AutoRenewPeriod.Int64(),
			MaxAutomaticTokenAssociations: c.MaxAutomaticTokenAssociations.Int64(),
			EvmAddress:                    normalizeEvmAddress(c.EvmAddress),
			Deleted:                       c.Deleted,
		}, nil
	})
}

type mirrorToken struct {
	TokenId           string     `json:"token_id"`
	Name              string     `json:"name"`
	Symbol            string     `json:"symbol"`
	Decimals          FlexInt64  `json:"decimals"`
	TotalSupply       FlexInt64  `json:"total_supply"`
	TreasuryAccountId *string    `json:"treasury_account_id"`
	AdminKey          *MirrorKey `json:"admin_key"`
	Type              string     `json:"type"`
	SupplyType        string     `json:"supply_type"`
	MaxSupply         FlexInt64  `json:"max_supply"`
	FreezeDefault     bool       `json:"freeze_default"`
	Memo              string     `json:"memo"`
	Deleted           bool       `json:"deleted"`
}

func (m *MirrorRest) Token(ctx context.Context, id common.EntityId) (*common.TokenState, error) {
	ref := common.TokenRef(id)
	return observe(ctx, MirrorRestName, ref, func(ctx context.Context) (*common.TokenState, error) {
		var t mirrorToken
		if err := m.get(ctx, ref, "/api/v1/tokens/"+id.String(), nil, &t); err != nil {
			return nil, err
		}
		return &common.TokenState{
			TokenId:           id,
			Name:              t.Name,
			Symbol:            t.Symbol,
			Decimals:          t.Decimals.Int64(),
			TotalSupply:       t.TotalSupply.Int64(),
			TreasuryAccountId: normalizeEntityString(t.TreasuryAccountId),
			AdminKey:          t.AdminKey.normalized(),
			TokenType:         t.Type,
			SupplyType:        t.SupplyType,
			MaxSupply:         t.MaxSupply.Int64(),
			FreezeDefault:     t.FreezeDefault,
			Memo:              t.Memo,
			Deleted:           t.Deleted,
		}, nil
	})
}

type mirrorTopic struct {
	TopicId   string     `json:"topic_id"`
	Memo      string     `json:"memo"`
	AdminKey  *MirrorKey `json:"admin_key"`
	SubmitKey *MirrorKey `json:"submit_key"`
	Deleted   bool       `json:"deleted"`
}

func (m *MirrorRest) Topic(ctx context.Context, id common.EntityId) (*common.TopicState, error) {
	ref := common.TopicRef(id)
	return observe(ctx, MirrorRestName, ref, func(ctx context.Context) (*common.TopicState, error) {
		var t mirrorTopic
		if err := m.get(ctx, ref, "/api/v1/topics/"+id.String(), nil, &t); err != nil {
			return nil, err
		}
		return &common.TopicState{
			TopicId:   id,
			Memo:      t.Memo,
			AdminKey:  t.AdminKey.normalized(),
			SubmitKey: t.SubmitKey.normalized(),
			Deleted:   t.Deleted,
		}, nil
	})
}

type mirrorSchedule struct {
	ScheduleId        string     `json:"schedule_id"`
	CreatorAccountId  *string    `json:"creator_account_id"`
	PayerAccountId    *string    `json:"payer_account_id"`
	AdminKey          *MirrorKey `json:"admin_key"`
	Memo              string     `json:"memo"`
	ExecutedTimestamp *string    `json:"executed_timestamp"`
	Deleted           bool       `json:"deleted"`
	WaitForExpiry     bool       `json:"wait_for_expiry"`
}

func (m *MirrorRest) Schedule(ctx context.Context, id common.EntityId) (*common.ScheduleState, error) {
	ref := common.ScheduleRef(id)
	return observe(ctx, MirrorRestName, ref, func(ctx context.Context) (*common.ScheduleState, error) {
		var s mirrorSchedule
		if err := m.get(ctx, ref, "/api/v1/schedules/"+id.String(), nil, &s); err != nil {
			return nil, err
		}
		return &common.ScheduleState{
			ScheduleId:       id,
			CreatorAccountId: normalizeEntityString(s.CreatorAccountId),
			PayerAccountId:   normalizeEntityString(s.PayerAccountId),
			AdminKey:         s.AdminKey.normalized(),
			Memo:             s.Memo,
			Executed:         s.ExecutedTimestamp != nil && *s.ExecutedTimestamp != "",
			Deleted:          s.Deleted,
			WaitForExpiry:    s.WaitForExpiry,
		}, nil
	})
}

type mirrorServiceEndpoint struct {
	IpAddressV4 string    `json:"ip_address_v4"`
	Port        FlexInt64 `json:"port"`
	DomainName  string    `json:"domain_name"`
}

type mirrorNode struct {
	NodeId           FlexInt64               `json:"node_id"`
	NodeAccountId    string                  `json:"node_account_id"`
	Description      string                  `json:"description"`
	ServiceEndpoints []mirrorServiceEndpoint `json:"service_endpoints"`
}

type mirrorNodes struct {
	Nodes []mirrorNode `json:"nodes"`
}

func (m *MirrorRest) Node(ctx context.Context, nodeId int64) (*common.NodeState, error) {
	ref := common.NodeRef(nodeId)
	return observe(ctx, MirrorRestName, ref, func(ctx context.Context) (*common.NodeState, error) {
		var out mirrorNodes
		q := url.Values{}
		q.Set("node.id", fmt.Sprintf("eq:%d", nodeId))
		if err := m.get(ctx, ref, "/api/v1/network/nodes", q, &out); err != nil {
			return nil, err
		}
		for _, n := range out.Nodes {
			if n.NodeId.Int64() != nodeId {
				continue
			}
			eps := make([]string, 0, len(n.ServiceEndpoints))
			for _, ep := range n.ServiceEndpoints {
				eps = append(eps, formatEndpoint(ep.IpAddressV4, ep.DomainName, ep.Port.Int64()))
			}
			return &common.NodeState{
				NodeId:           nodeId,
				NodeAccountId:    n.NodeAccountId,
				Description:      n.Description,
				ServiceEndpoints: sortedEndpoints(eps),
			}, nil
		}
		return nil, common.NewErrEntityNotFound(MirrorRestName, ref, nil)
	})
}

// TransactionRecord is the replica's view of one transaction.
type TransactionRecord struct {
	TransactionId      string
	Result             string
	EntityId           string
	ConsensusTimestamp string
}

type mirrorTransactions struct {
	Transactions []struct {
		TransactionId      string  `json:"transaction_id"`
		Result             string  `json:"result"`
		EntityId           *string `json:"entity_id"`
		ConsensusTimestamp string  `json:"consensus_timestamp"`
	} `json:"transactions"`
}

// Transaction looks up txId on the replica. Scheduled or child transactions share the id;
// the first entry is the parent.
func (m *MirrorRest) Transaction(ctx context.Context, txId common.TransactionId) (*TransactionRecord, error) {
	ref := transactionRef(txId)
	return observe(ctx, MirrorRestName, ref, func(ctx context.Context) (*TransactionRecord, error) {
		var out mirrorTransactions
		if err := m.get(ctx, ref, "/api/v1/transactions/"+txId.MirrorString(), nil, &out); err != nil {
			return nil, err
		}
		if len(out.Transactions) == 0 {
			return nil, common.NewErrEntityNotFound(MirrorRestName, ref, nil)
		}
		first := out.Transactions[0]
		return &TransactionRecord{
			TransactionId:      first.TransactionId,
			Result:             first.Result,
			EntityId:           normalizeEntityString(first.EntityId),
			ConsensusTimestamp: first.ConsensusTimestamp,
		}, nil
	})
}
