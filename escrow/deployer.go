package escrow

import (
	"context"

	"go.uber.org/zap"
)

// Deployer receives a completed draft. No contract submission protocol exists yet,
// so implementations decide what "deploy" means.
type Deployer interface {
	Deploy(ctx context.Context, draft Draft) error
}

// DeploymentNotice is the confirmation shown once a draft is handed off.
const DeploymentNotice = "Contract deployment initiated!"

// LogDeployer is the stub boundary: it records the payload and does nothing else.
type LogDeployer struct {
	logger *zap.Logger
}

func NewLogDeployer(logger *zap.Logger) *LogDeployer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDeployer{logger: logger}
}

func (d *LogDeployer) Deploy(_ context.Context, draft Draft) error {
	d.logger.Info("deploying contract",
		zap.String("payer_name", draft.Payer.Name),
		zap.String("payer_upi", draft.Payer.UPIID),
		zap.String("payer_wallet", draft.Payer.WalletAddress),
		zap.String("payee_name", draft.Payee.Name),
		zap.String("payee_upi", draft.Payee.UPIID),
		zap.String("payee_wallet", draft.Payee.WalletAddress),
		zap.Float64("amount", draft.Amount),
		zap.Int("terms_len", len(draft.Terms)),
	)
	return nil
}
