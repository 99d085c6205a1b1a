package agent

import "testing"

func TestBaseAgent_Accessors(t *testing.T) {
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "demo", nil)

	if got := a.DID(); got != "did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa" {
		t.Errorf("DID() = %q", got)
	}
	if got := a.Name(); got != "demo" {
		t.Errorf("Name() = %q", got)
	}
	if a.API() != nil || a.Messages() != nil || a.Groups() != nil {
		t.Error("capabilities should be nil before With*")
	}
}

func TestBaseAgent_WithDescription(t *testing.T) {
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "demo", nil).
		WithDescription(Description{Summary: "test agent", Version: "1.0.0"})

	desc := a.Description()
	if desc.Summary != "test agent" {
		t.Errorf("Description().Summary = %q", desc.Summary)
	}
	if desc.Version != "1.0.0" {
		t.Errorf("Description().Version = %q", desc.Version)
	}
}

func TestBaseAgent_InterfaceFile(t *testing.T) {
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "demo", nil).
		WithInterfaceFile("api_interface.yaml", "application/x-yaml", []byte("openapi: 3.0.0"))

	content, contentType, ok := a.InterfaceFile("api_interface.yaml")
	if !ok {
		t.Fatal("InterfaceFile() not found")
	}
	if string(content) != "openapi: 3.0.0" {
		t.Errorf("InterfaceFile() content = %q", content)
	}
	if contentType != "application/x-yaml" {
		t.Errorf("InterfaceFile() contentType = %q", contentType)
	}

	if _, _, ok := a.InterfaceFile("missing.yaml"); ok {
		t.Error("InterfaceFile() should not find unregistered file")
	}
}

func TestBaseAgent_ImplementsDescriber(t *testing.T) {
	var _ Describer = NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "demo", nil)
}
