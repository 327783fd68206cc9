package common

import (
	"sort"
)

// Snapshot is the normalized view of an entity reported by an oracle. Field names are
// shared across oracles so the same entity can be compared field by field.
type Snapshot interface {
	Ref() EntityRef
	Fields() map[string]interface{}
}

const (
	FieldAccountId                     = "accountId"
	FieldBalance                       = "balance"
	FieldKey                           = "key"
	FieldMemo                          = "memo"
	FieldDeleted                       = "deleted"
	FieldReceiverSignatureRequired     = "receiverSignatureRequired"
	FieldMaxAutomaticTokenAssociations = "maxAutomaticTokenAssociations"
	FieldAutoRenewPeriod               = "autoRenewPeriod"
	FieldAutoRenewAccountId            = "autoRenewAccountId"
	FieldStakedAccountId               = "stakedAccountId"
	FieldStakedNodeId                  = "stakedNodeId"
	FieldDeclineStakingReward          = "declineStakingReward"
	FieldEvmAddress                    = "evmAddress"

	FieldContractId = "contractId"
	FieldAdminKey   = "adminKey"

	FieldTokenId           = "tokenId"
	FieldName              = "name"
	FieldSymbol            = "symbol"
	FieldDecimals          = "decimals"
	FieldTotalSupply       = "totalSupply"
	FieldTreasuryAccountId = "treasuryAccountId"
	FieldTokenType         = "tokenType"
	FieldSupplyType        = "supplyType"
	FieldMaxSupply         = "maxSupply"
	FieldFreezeDefault     = "freezeDefault"

	FieldTopicId   = "topicId"
	FieldSubmitKey = "submitKey"

	FieldScheduleId       = "scheduleId"
	FieldCreatorAccountId = "creatorAccountId"
	FieldPayerAccountId   = "payerAccountId"
	FieldExecuted         = "executed"
	FieldWaitForExpiry    = "waitForExpiry"

	FieldNodeId           = "nodeId"
	FieldNodeAccountId    = "nodeAccountId"
	FieldDescription      = "description"
	FieldServiceEndpoints = "serviceEndpoints"
)

func optionalInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

type AccountState struct {
	AccountId                     EntityId
	Balance                       int64
	Key                           string
	Memo                          string
	Deleted                       bool
	ReceiverSignatureRequired     bool
	MaxAutomaticTokenAssociations int64
	AutoRenewPeriod               int64
	StakedAccountId               string
	StakedNodeId                  *int64
	DeclineStakingReward          bool
	EvmAddress                    string
}

func (s *AccountState) Ref() EntityRef { return AccountRef(s.AccountId) }

func (s *AccountState) Fields() map[string]interface{} {
	return map[string]interface{}{
		FieldAccountId:                     s.AccountId.String(),
		FieldBalance:                       s.Balance,
		FieldKey:                           s.Key,
		FieldMemo:                          s.Memo,
		FieldDeleted:                       s.Deleted,
		FieldReceiverSignatureRequired:     s.ReceiverSignatureRequired,
		FieldMaxAutomaticTokenAssociations: s.MaxAutomaticTokenAssociations,
		FieldAutoRenewPeriod:               s.AutoRenewPeriod,
		FieldStakedAccountId:               s.StakedAccountId,
		FieldStakedNodeId:                  optionalInt(s.StakedNodeId),
		FieldDeclineStakingReward:          s.DeclineStakingReward,
		FieldEvmAddress:                    s.EvmAddress,
	}
}

type ContractState struct {
	ContractId                    EntityId
	AdminKey                      string
	Memo                          string
	AutoRenewAccountId            string
	AutoRenewPeriod               int64
	MaxAutomaticTokenAssociations int64
	EvmAddress                    string
	Deleted                       bool
}

func (s *ContractState) Ref() EntityRef { return ContractRef(s.ContractId) }

func (s *ContractState) Fields() map[string]interface{} {
	return map[string]interface{}{
		FieldContractId:                    s.ContractId.String(),
		FieldAdminKey:                      s.AdminKey,
		FieldMemo:                          s.Memo,
		FieldAutoRenewAccountId:            s.AutoRenewAccountId,
		FieldAutoRenewPeriod:               s.AutoRenewPeriod,
		FieldMaxAutomaticTokenAssociations: s.MaxAutomaticTokenAssociations,
		FieldEvmAddress:                    s.EvmAddress,
		FieldDeleted:                       s.Deleted,
	}
}

type TokenState struct {
	TokenId           EntityId
	Name              string
	Symbol            string
	Decimals          int64
	TotalSupply       int64
	TreasuryAccountId string
	AdminKey          string
	TokenType         string
	SupplyType        string
	MaxSupply         int64
	FreezeDefault     bool
	Memo              string
	Deleted           bool
}

func (s *TokenState) Ref() EntityRef { return TokenRef(s.TokenId) }

func (s *TokenState) Fields() map[string]interface{} {
	return map[string]interface{}{
		FieldTokenId:           s.TokenId.String(),
		FieldName:              s.Name,
		FieldSymbol:            s.Symbol,
		FieldDecimals:          s.Decimals,
		FieldTotalSupply:       s.TotalSupply,
		FieldTreasuryAccountId: s.TreasuryAccountId,
		FieldAdminKey:          s.AdminKey,
		FieldTokenType:         s.TokenType,
		FieldSupplyType:        s.SupplyType,
		FieldMaxSupply:         s.MaxSupply,
		FieldFreezeDefault:     s.FreezeDefault,
		FieldMemo:              s.Memo,
		FieldDeleted:           s.Deleted,
	}
}

type TopicState struct {
	TopicId            EntityId
	Memo               string
	AdminKey           string
	SubmitKey          string
	AutoRenewAccountId string
	AutoRenewPeriod    int64
	Deleted            bool
}

func (s *TopicState) Ref() EntityRef { return TopicRef(s.TopicId) }

func (s *TopicState) Fields() map[string]interface{} {
	return map[string]interface{}{
		FieldTopicId:            s.TopicId.String(),
		FieldMemo:               s.Memo,
		FieldAdminKey:           s.AdminKey,
		FieldSubmitKey:          s.SubmitKey,
		FieldAutoRenewAccountId: s.AutoRenewAccountId,
		FieldAutoRenewPeriod:    s.AutoRenewPeriod,
		FieldDeleted:            s.Deleted,
	}
}

type ScheduleState struct {
	ScheduleId       EntityId
	CreatorAccountId string
	PayerAccountId   string
	AdminKey         string
	Memo             string
	Executed         bool
	Deleted          bool
	WaitForExpiry    bool
}

func (s *ScheduleState) Ref() EntityRef { return ScheduleRef(s.ScheduleId) }

func (s *ScheduleState) Fields() map[string]interface{} {
	return map[string]interface{}{
		FieldScheduleId:       s.ScheduleId.String(),
		FieldCreatorAccountId: s.CreatorAccountId,
		FieldPayerAccountId:   s.PayerAccountId,
		FieldAdminKey:         s.AdminKey,
		FieldMemo:             s.Memo,
		FieldExecuted:         s.Executed,
		FieldDeleted:          s.Deleted,
		FieldWaitForExpiry:    s.WaitForExpiry,
	}
}

type NodeState struct {
	NodeId           int64
	NodeAccountId    string
	Description      string
	ServiceEndpoints []string
}

func (s *NodeState) Ref() EntityRef { return NodeRef(s.NodeId) }

func (s *NodeState) Fields() map[string]interface{} {
	eps := make([]string, 0, len(s.ServiceEndpoints))
	eps = append(eps, s.ServiceEndpoints...)
	sort.Strings(eps)
	return map[string]interface{}{
		FieldNodeId:           s.NodeId,
		FieldNodeAccountId:    s.NodeAccountId,
		FieldDescription:      s.Description,
		FieldServiceEndpoints: eps,
	}
}

// TransactionReceipt is the ground-truth outcome of one transaction.
type TransactionReceipt struct {
	TransactionId TransactionId
	Status        string
	AccountId     string
	TokenId       string
	TopicId       string
	ContractId    string
	ScheduleId    string
}
