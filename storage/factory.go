package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/ruteri/tee-secure-signer/interfaces"
)

// ErrInvalidLocationURI is returned when a store URI is malformed or unsupported.
var ErrInvalidLocationURI = errors.New("invalid storage location URI")

// StoreFactory creates key-value stores from URI strings.
type StoreFactory struct {
	log *slog.Logger
}

func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	return &StoreFactory{log: logger}
}

// StoreFor creates a store from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
// A comma-separated list of URIs creates a MultiStore mirroring all of them,
// the first URI being the preferred read source.
func (sf *StoreFactory) StoreFor(locationURI string) (interfaces.KVStore, error) {
	if strings.Contains(locationURI, ",") {
		return sf.createMultiStore(strings.Split(locationURI, ","))
	}

	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "memory":
		sf.log.Warn("Using in-memory store, signer state is lost on restart")
		return NewMemoryStore(), nil
	case "file":
		return sf.createFileStore(u)
	case "vault":
		return sf.createVaultStore(u)
	case "s3":
		return sf.createS3Store(u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, u.Scheme)
	}
}

// createFileStore creates a file system store.
// URI format: file:///absolute/path?passphrase_env=SIGNER_STORE_PASSPHRASE
func (sf *StoreFactory) createFileStore(u *url.URL) (interfaces.KVStore, error) {
	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", ErrInvalidLocationURI)
	}

	var passphrase []byte
	if env := u.Query().Get("passphrase_env"); env != "" {
		value, found := os.LookupEnv(env)
		if !found || value == "" {
			return nil, fmt.Errorf("passphrase environment variable %s is not set", env)
		}
		passphrase = []byte(value)
	} else {
		sf.log.Warn("File store is not sealed, set passphrase_env to encrypt values at rest")
	}

	return NewFileStore(path, passphrase, sf.log)
}

// createVaultStore creates a Vault KV v2 store.
// URI format: vault://host:port/mount/path?tls=false
// The token is read from VAULT_TOKEN.
func (sf *StoreFactory) createVaultStore(u *url.URL) (interfaces.KVStore, error) {
	scheme := "https"
	if u.Query().Get("tls") == "false" {
		scheme = "http"
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: vault URI must include a mount path", ErrInvalidLocationURI)
	}
	dataPath := ""
	if len(parts) == 2 {
		dataPath = parts[1]
	}

	return NewVaultStore(fmt.Sprintf("%s://%s", scheme, u.Host), os.Getenv("VAULT_TOKEN"), parts[0], dataPath, sf.log)
}

// createS3Store creates an S3 store.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix?region=us-west-2&endpoint=custom.s3.com
func (sf *StoreFactory) createS3Store(u *url.URL) (interfaces.KVStore, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("%w: s3 URI must include a bucket", ErrInvalidLocationURI)
	}

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Store(u.Host, strings.TrimPrefix(u.Path, "/"), region, query.Get("endpoint"), accessKey, secretKey, sf.log)
}

func (sf *StoreFactory) createMultiStore(locationURIs []string) (interfaces.KVStore, error) {
	backends := make([]interfaces.KVStore, 0, len(locationURIs))
	for _, uri := range locationURIs {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			continue
		}
		backend, err := sf.StoreFor(uri)
		if err != nil {
			return nil, err
		}
		backends = append(backends, backend)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: empty store list", ErrInvalidLocationURI)
	}
	return NewMultiStore(backends, sf.log), nil
}
