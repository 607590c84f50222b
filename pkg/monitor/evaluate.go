package monitor

import (
	"github.com/sirupsen/logrus"

	"github.com/numbergroup/aptmon/pkg/rpc"
)

// HeightLagThreshold is how many blocks the local node may trail the remote one.
const HeightLagThreshold = 400

type Divergence struct {
	HeightLag bool
	EpochLag  bool
}

func (d Divergence) Lagging() bool {
	return d.HeightLag || d.EpochLag
}

// Evaluate compares a local and remote status. It keeps no state and does not
// modify its inputs; the compared values are always logged.
func Evaluate(log logrus.Ext1FieldLogger, local, remote *rpc.NodeStatus) Divergence {
	out := Divergence{
		// local < remote-threshold, without unsigned underflow
		HeightLag: local.BlockHeight+HeightLagThreshold < remote.BlockHeight,
		EpochLag:  local.Epoch < remote.Epoch,
	}

	heightLog := log.WithFields(logrus.Fields{
		"validator_height": local.BlockHeight,
		"remote_height":    remote.BlockHeight,
	})
	if out.HeightLag {
		heightLog.Error("block height of validator is lagging")
	}
	heightLog.Info("compared block heights")

	epochLog := log.WithFields(logrus.Fields{
		"validator_epoch": local.Epoch,
		"remote_epoch":    remote.Epoch,
	})
	if out.EpochLag {
		epochLog.Error("difference in epoch for validator")
	}
	epochLog.Info("compared epochs")

	return out
}
