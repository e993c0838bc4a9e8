package util

import (
	"testing"
)

func testConf(domain string) *AppConfig {
	c := &AppConfig{}
	c.Conf.Host = "0.0.0.0"
	c.Conf.HttpPort = 8080
	c.Conf.Domain = domain
	c.Conf.DbFile = "test.db"
	return c
}

func TestBaseURI(t *testing.T) {
	c := testConf("example.com")
	if got := c.BaseURI(); got != "https://example.com" {
		t.Errorf("BaseURI = %q", got)
	}
}

func TestActorURI(t *testing.T) {
	tests := []struct {
		domain   string
		username string
		want     string
	}{
		{"example.com", "alice", "https://example.com/users/alice"},
		{"social.network", "bob", "https://social.network/users/bob"},
	}

	for _, tt := range tests {
		t.Run(tt.username+"@"+tt.domain, func(t *testing.T) {
			c := testConf(tt.domain)
			if got := c.ActorURI(tt.username); got != tt.want {
				t.Errorf("ActorURI = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyID(t *testing.T) {
	c := testConf("example.com")
	want := "https://example.com/users/alice#main-key"
	if got := c.KeyID("alice"); got != want {
		t.Errorf("KeyID = %q, want %q", got, want)
	}
}

func TestLocalUsername(t *testing.T) {
	c := testConf("example.com")

	tests := []struct {
		name string
		url  string
		want string
		ok   bool
	}{
		{"profile url", "https://example.com/users/alice", "alice", true},
		{"own base", "https://example.com/", "", false},
		{"foreign domain", "https://elsewhere.example/users/alice", "", false},
		{"nested path", "https://example.com/users/alice/inbox", "", false},
		{"not users path", "https://example.com/notes/alice", "", false},
		{"empty name", "https://example.com/users/", "", false},
		{"unparseable", "://nope", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.LocalUsername(tt.url)
			if got != tt.want || ok != tt.ok {
				t.Errorf("LocalUsername(%q) = (%q, %v), want (%q, %v)", tt.url, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIsLocalURI(t *testing.T) {
	c := testConf("example.com")

	if !c.IsLocalURI("https://example.com/notes/1") {
		t.Error("Own namespace should be local")
	}
	if c.IsLocalURI("https://elsewhere.example/notes/1") {
		t.Error("A foreign URL should not be local")
	}
}

func TestReadConfEnvOverrides(t *testing.T) {
	t.Setenv("NOTABENE_DOMAIN", "override.example")
	t.Setenv("NOTABENE_HTTPPORT", "9999")
	t.Setenv("NOTABENE_DBFILE", "override.db")

	c, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}
	if c.Conf.Domain != "override.example" {
		t.Errorf("Domain = %q", c.Conf.Domain)
	}
	if c.Conf.HttpPort != 9999 {
		t.Errorf("HttpPort = %d", c.Conf.HttpPort)
	}
	if c.Conf.DbFile != "override.db" {
		t.Errorf("DbFile = %q", c.Conf.DbFile)
	}
}

func TestReadConfInvalidPort(t *testing.T) {
	t.Setenv("NOTABENE_DOMAIN", "example.com")
	t.Setenv("NOTABENE_HTTPPORT", "not-a-port")

	if _, err := ReadConf(); err == nil {
		t.Error("Expected error for an unparseable port")
	}
}
