package multicredential

import (
	"testing"

	"github.com/kiteticker-go/kiteticker/manager"
	"github.com/kiteticker-go/kiteticker/session"
)

func TestBuilderRequiresCredentials(t *testing.T) {
	if _, err := NewBuilder().Build(); err == nil {
		t.Fatal("Build with no credentials should fail")
	}
}

func TestBuilderPreservesOrder(t *testing.T) {
	f, err := NewBuilder().
		AddCredential("primary", manager.WithHost("h1")).
		AddCredential("secondary", manager.WithHost("h2")).
		AddCredential("primary", manager.WithHost("h1b")). // replace keeps position
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ids := f.GetCredentialIDs()
	if len(ids) != 2 || ids[0] != "primary" || ids[1] != "secondary" {
		t.Errorf("credential order = %v, want [primary secondary]", ids)
	}
}

func TestManualStrategyRefusesAutoSubscribe(t *testing.T) {
	f, err := NewBuilder().
		AddCredential("only", manager.WithHost("h"), manager.WithCredentials(session.Credentials{APIKey: "k"})).
		WithDistributionStrategy(DistributionManual).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if err := f.SubscribeSymbols([]uint32{1}, nil); err == nil {
		t.Fatal("auto-subscribe under DistributionManual should fail")
	}
}

func TestFacadeNotStartedErrors(t *testing.T) {
	f, err := NewBuilder().AddCredential("only", manager.WithHost("h")).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if err := f.SubscribeSymbols([]uint32{1}, nil); err == nil {
		t.Error("SubscribeSymbols before Start should fail")
	}
	if err := f.SubscribeSymbolsTo("only", []uint32{1}, nil); err == nil {
		t.Error("SubscribeSymbolsTo before Start should fail")
	}
	if err := f.UnsubscribeSymbols([]uint32{1}); err == nil {
		t.Error("UnsubscribeSymbols before Start should fail")
	}
}
