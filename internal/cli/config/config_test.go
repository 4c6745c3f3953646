package config

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("WGCONF_FORMAT", "")
	t.Setenv("BACKEND", "")
	t.Setenv("ETCD_ENDPOINTS", "")
	t.Setenv("AGE_IDENTITY_FILE", "")
	t.Setenv("AGE_RECIPIENTS", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format != FormatWireGuard || cfg.Backend != BackendKernel {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if len(cfg.EtcdEndpoints) != 0 || len(cfg.AgeRecipients) != 0 || cfg.AgeIdentityFile != "" {
		t.Fatalf("unexpected optional values: %#v", cfg)
	}
}

func TestFromEnv_Valid(t *testing.T) {
	t.Setenv("WGCONF_FORMAT", "Amnezia")
	t.Setenv("BACKEND", string(BackendNetworkManager))
	t.Setenv("ETCD_ENDPOINTS", " http://a:2379 , http://b:2379, ")
	t.Setenv("AGE_IDENTITY_FILE", " /etc/wgconf/key.txt ")
	t.Setenv("AGE_RECIPIENTS", "age1aaa,age1bbb")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format != FormatAmnezia {
		t.Fatalf("unexpected format: %q", cfg.Format)
	}
	if cfg.Backend != BackendNetworkManager {
		t.Fatalf("unexpected backend: %q", cfg.Backend)
	}
	if len(cfg.EtcdEndpoints) != 2 || cfg.EtcdEndpoints[0] != "http://a:2379" || cfg.EtcdEndpoints[1] != "http://b:2379" {
		t.Fatalf("unexpected endpoints: %#v", cfg.EtcdEndpoints)
	}
	if cfg.AgeIdentityFile != "/etc/wgconf/key.txt" {
		t.Fatalf("unexpected identity file: %q", cfg.AgeIdentityFile)
	}
	if len(cfg.AgeRecipients) != 2 {
		t.Fatalf("unexpected recipients: %#v", cfg.AgeRecipients)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Run("format", func(t *testing.T) {
		t.Setenv("WGCONF_FORMAT", "openvpn")
		t.Setenv("BACKEND", "")
		if _, err := FromEnv(); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("backend", func(t *testing.T) {
		t.Setenv("WGCONF_FORMAT", "")
		t.Setenv("BACKEND", "wg-quick")
		if _, err := FromEnv(); err == nil {
			t.Fatalf("expected error")
		}
	})
}
