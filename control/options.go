package control

import (
	"github.com/erpc/tck/common"
	"github.com/erpc/tck/keys"
)

type callOptions struct {
	signers  []string
	feePayer *common.EntityId
	maxFee   *int64
	memo     *string
}

// CallOption overrides the implicit per-session defaults of a single Send.
type CallOption func(*callOptions)

// WithSigners adds signatures from the given keys on top of the session operator's.
func WithSigners(signers ...*keys.PrivateKey) CallOption {
	return func(o *callOptions) {
		for _, k := range signers {
			if k != nil {
				o.signers = append(o.signers, k.StringDer())
			}
		}
	}
}

// WithRawSigners passes signer strings through untouched, which lets tests send malformed keys.
func WithRawSigners(signers ...string) CallOption {
	return func(o *callOptions) {
		o.signers = append(o.signers, signers...)
	}
}

// WithFeePayer makes payer pay for the transaction instead of the session operator.
func WithFeePayer(payer common.EntityId) CallOption {
	return func(o *callOptions) {
		o.feePayer = &payer
	}
}

func WithMaxTransactionFee(tinybars int64) CallOption {
	return func(o *callOptions) {
		o.maxFee = &tinybars
	}
}

func WithMemo(memo string) CallOption {
	return func(o *callOptions) {
		o.memo = &memo
	}
}
