package formation

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/banshee-data/motion.report/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	goleak.VerifyTestMain(m)
}
