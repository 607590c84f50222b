package monitor

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/numbergroup/aptmon/pkg/rpc"
)

func status(height, epoch uint64) *rpc.NodeStatus {
	return &rpc.NodeStatus{BlockHeight: height, Epoch: epoch}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		local  *rpc.NodeStatus
		remote *rpc.NodeStatus
		want   Divergence
	}{
		{"height lag", status(1000, 5), status(1500, 5), Divergence{HeightLag: true}},
		{"epoch lag", status(1000, 4), status(1000, 5), Divergence{EpochLag: true}},
		{"within threshold", status(1200, 5), status(1500, 5), Divergence{}},
		{"exactly at threshold", status(1100, 5), status(1500, 5), Divergence{}},
		{"one past threshold", status(1099, 5), status(1500, 5), Divergence{HeightLag: true}},
		{"both lag", status(10, 1), status(1000, 3), Divergence{HeightLag: true, EpochLag: true}},
		{"local ahead", status(2000, 6), status(1500, 5), Divergence{}},
		{"remote below threshold", status(0, 0), status(300, 0), Divergence{}},
	}

	log := logrus.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(log, tt.local, tt.remote)
			if got != tt.want {
				t.Fatalf("unexpected divergence got %+v want %+v", got, tt.want)
			}
			if got.Lagging() != (tt.want.HeightLag || tt.want.EpochLag) {
				t.Fatalf("Lagging() disagrees with flags: %+v", got)
			}
		})
	}
}

func TestEvaluate_DoesNotMutate(t *testing.T) {
	local, remote := status(1, 1), status(1000, 2)
	Evaluate(logrus.New(), local, remote)
	if local.BlockHeight != 1 || local.Epoch != 1 || remote.BlockHeight != 1000 || remote.Epoch != 2 {
		t.Fatalf("inputs were modified: %+v %+v", local, remote)
	}
}

func countLevel(hook *logtest.Hook, level logrus.Level) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func TestEvaluate_LogsComparedValues(t *testing.T) {
	log, hook := logtest.NewNullLogger()

	Evaluate(log, status(1200, 5), status(1500, 5))
	if got := countLevel(hook, logrus.InfoLevel); got != 2 {
		t.Fatalf("expected 2 info entries, got %d", got)
	}
	if got := countLevel(hook, logrus.ErrorLevel); got != 0 {
		t.Fatalf("expected no error entries, got %d", got)
	}
	entry := hook.AllEntries()[0]
	if entry.Data["validator_height"] != uint64(1200) || entry.Data["remote_height"] != uint64(1500) {
		t.Fatalf("unexpected height fields: %v", entry.Data)
	}
}

func TestEvaluate_LogsErrorOnLag(t *testing.T) {
	log, hook := logtest.NewNullLogger()

	Evaluate(log, status(10, 1), status(1000, 2))
	if got := countLevel(hook, logrus.InfoLevel); got != 2 {
		t.Fatalf("expected 2 info entries, got %d", got)
	}
	if got := countLevel(hook, logrus.ErrorLevel); got != 2 {
		t.Fatalf("expected 2 error entries, got %d", got)
	}
	for _, e := range hook.AllEntries() {
		if e.Level != logrus.ErrorLevel {
			continue
		}
		if _, ok := e.Data["validator_height"]; ok {
			continue
		}
		if e.Data["validator_epoch"] != uint64(1) || e.Data["remote_epoch"] != uint64(2) {
			t.Fatalf("unexpected epoch fields: %v", e.Data)
		}
	}
}
