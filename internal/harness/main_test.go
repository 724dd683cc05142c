package harness

import (
	"testing"

	"go.uber.org/goleak"

	"approbe/internal/fixtureserver"
)

func TestMain(m *testing.M) {
	fixtureserver.RunIfRequested()
	goleak.VerifyTestMain(m)
}
