package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/exeteres/wgconf/internal/stringsx"
)

type Format string

const (
	FormatWireGuard Format = "wireguard"
	FormatAmnezia   Format = "amnezia"
)

type Backend string

const (
	BackendKernel         Backend = "kernel"
	BackendNetworkManager Backend = "networkmanager"
)

type Config struct {
	Format  Format
	Backend Backend

	// EtcdEndpoints is empty when etcd is not configured.
	EtcdEndpoints []string

	AgeIdentityFile string
	AgeRecipients   []string
}

func FromEnv() (Config, error) {
	format := Format(strings.ToLower(strings.TrimSpace(os.Getenv("WGCONF_FORMAT"))))
	switch format {
	case "":
		format = FormatWireGuard
	case FormatWireGuard, FormatAmnezia:
		// ok
	default:
		return Config{}, fmt.Errorf("WGCONF_FORMAT must be one of %q, %q", FormatWireGuard, FormatAmnezia)
	}

	backend := Backend(strings.ToLower(strings.TrimSpace(os.Getenv("BACKEND"))))
	switch backend {
	case "":
		backend = BackendKernel
	case BackendKernel, BackendNetworkManager:
		// ok
	default:
		return Config{}, fmt.Errorf("BACKEND must be one of %q, %q", BackendKernel, BackendNetworkManager)
	}

	return Config{
		Format:          format,
		Backend:         backend,
		EtcdEndpoints:   stringsx.SplitCommaSeparated(os.Getenv("ETCD_ENDPOINTS")),
		AgeIdentityFile: strings.TrimSpace(os.Getenv("AGE_IDENTITY_FILE")),
		AgeRecipients:   stringsx.SplitCommaSeparated(os.Getenv("AGE_RECIPIENTS")),
	}, nil
}
