package commands

import (
	"os"
	"testing"

	"approbe/internal/fixtureserver"
)

func TestMain(m *testing.M) {
	fixtureserver.RunIfRequested()
	os.Exit(m.Run())
}
