package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

const (
	lakeFSDefaultConfigLocation = "~/.lakectl.yaml"
	lakeFSConfigEnvVar          = "LAKECTL_CONFIG"
	lakeFSApiPrefix             = "/api/v1"
	lakeFSEnvAccessKeyId        = "LAKECTL_ACCESS_KEY_ID"
	lakeFSEnvSecretAccessKey    = "LAKECTL_SECRET_ACCESS_KEY"
	lakeFSEnvEndpointUrl        = "LAKECTL_ENDPOINT_URL"
)

var (
	ErrLakeFSError = errors.New("lakeFS API Error")
)

type lakeFSCredentials struct {
	AccessKeyId     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type lakeFSServer struct {
	EndpointURL string `yaml:"endpoint_url"`
}

type lakeFSConfig struct {
	Credentials lakeFSCredentials `yaml:"credentials"`
	Server      lakeFSServer      `yaml:"server"`
}

func (c *lakeFSConfig) authHeader() string {
	return fmt.Sprintf("Basic %s", basicAuth(c.Credentials.AccessKeyId, c.Credentials.SecretAccessKey))
}

type lakeFSInstallationConfig struct {
	StorageConfig struct {
		PreSignSupport bool `json:"pre_sign_support"`
	} `json:"storage_config"`
}

type lakeFSObjectStats struct {
	PhysicalAddress       string `json:"physical_address"`
	PhysicalAddressExpiry *int64 `json:"physical_address_expiry,omitempty"`
}

func loadLakeFSConfigFromEnv() (*lakeFSConfig, error) {
	cfg := &lakeFSConfig{
		Credentials: lakeFSCredentials{
			AccessKeyId:     os.Getenv(lakeFSEnvAccessKeyId),
			SecretAccessKey: os.Getenv(lakeFSEnvSecretAccessKey),
		},
		Server: lakeFSServer{EndpointURL: os.Getenv(lakeFSEnvEndpointUrl)},
	}
	if cfg.Credentials.AccessKeyId == "" || cfg.Credentials.SecretAccessKey == "" || cfg.Server.EndpointURL == "" {
		return nil, fmt.Errorf("%w: no configuration found", ErrLakeFSError)
	}
	cfg.Server.EndpointURL = normalizeLakeFSEndpoint(cfg.Server.EndpointURL)
	return cfg, nil
}

// normalizeLakeFSEndpoint makes sure the endpoint ends with the API prefix.
func normalizeLakeFSEndpoint(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasSuffix(endpoint, lakeFSApiPrefix) {
		endpoint += lakeFSApiPrefix
	}
	return endpoint
}

// parseLakeFSConfig reads a lakectl YAML configuration.
func parseLakeFSConfig(data []byte) (*lakeFSConfig, error) {
	cfg := &lakeFSConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLakeFSError, err)
	}
	cfg.Server.EndpointURL = normalizeLakeFSEndpoint(cfg.Server.EndpointURL)
	return cfg, nil
}

func loadLakeFSConfig() (*lakeFSConfig, error) {
	configLocation := lakeFSDefaultConfigLocation
	if fromEnv := os.Getenv(lakeFSConfigEnvVar); fromEnv != "" {
		configLocation = fromEnv
	}
	configPath, err := homedir.Expand(configLocation)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return loadLakeFSConfigFromEnv()
	} else if err != nil {
		return nil, err
	}
	return parseLakeFSConfig(data)
}

type lakeFSUri struct {
	repo   string
	ref    string
	object string
}

func parseLakeFSUri(uri string) (*lakeFSUri, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, ErrInvalidURI
	}
	pth := strings.TrimPrefix(path.Clean(parsed.Path), "/")
	pathParts := strings.SplitN(pth, "/", 2)
	if parsed.Host == "" || len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return nil, ErrInvalidURI
	}
	return &lakeFSUri{
		repo:   parsed.Host,
		ref:    pathParts[0],
		object: pathParts[1],
	}, nil
}

// LakeFSFetcher reads objects from lakeFS, through a pre-signed URL when the
// installation supports it and through the objects API otherwise.
type LakeFSFetcher struct {
	addr   *lakeFSUri
	client *http.Client

	cfg              *lakeFSConfig
	preSignSupported bool

	// for refreshing pre-signed url
	cachedUrl string
	expires   time.Time
	l         *sync.Mutex
}

func NewLakeFSFetcher(uri string) (*LakeFSFetcher, error) {
	addr, err := parseLakeFSUri(uri)
	if err != nil {
		return nil, err
	}
	cfg, err := loadLakeFSConfig()
	if err != nil {
		return nil, err
	}
	return newLakeFSFetcher(addr, cfg, http.DefaultClient)
}

func newLakeFSFetcher(addr *lakeFSUri, cfg *lakeFSConfig, client *http.Client) (*LakeFSFetcher, error) {
	f := &LakeFSFetcher{
		addr:   addr,
		client: client,
		cfg:    cfg,
		l:      &sync.Mutex{},
	}
	preSignSupported, err := f.canPreSign()
	if err != nil {
		return nil, err
	}
	f.preSignSupported = preSignSupported
	return f, nil
}

func (f *LakeFSFetcher) getJSON(req *http.Request, target interface{}) error {
	req.Header.Add("Authorization", f.cfg.authHeader())
	response, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode == http.StatusNotFound {
		return ErrDoesNotExist
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: got HTTP %d from %s", ErrLakeFSError, response.StatusCode, req.URL.Path)
	}
	return json.NewDecoder(response.Body).Decode(target)
}

func (f *LakeFSFetcher) canPreSign() (bool, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/config", f.cfg.Server.EndpointURL), nil)
	if err != nil {
		return false, err
	}
	installationConfig := &lakeFSInstallationConfig{}
	if err := f.getJSON(req, installationConfig); err != nil {
		return false, err
	}
	return installationConfig.StorageConfig.PreSignSupport, nil
}

func (f *LakeFSFetcher) objectsURL(ctx context.Context, suffix string, presign bool) (*http.Request, error) {
	objectUrl := fmt.Sprintf("%s/repositories/%s/refs/%s/objects%s",
		f.cfg.Server.EndpointURL, url.PathEscape(f.addr.repo), url.PathEscape(f.addr.ref), suffix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, objectUrl, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Add("path", f.addr.object)
	q.Add("presign", fmt.Sprintf("%t", presign))
	req.URL.RawQuery = q.Encode()
	return req, nil
}

func (f *LakeFSFetcher) getURL(ctx context.Context) (string, error) {
	f.l.Lock()
	defer f.l.Unlock()
	// return a pre-signed url, if we have a fresh one cached
	if f.cachedUrl != "" && (f.expires.IsZero() || f.expires.After(time.Now())) {
		return f.cachedUrl, nil
	}

	req, err := f.objectsURL(ctx, "/stat", true)
	if err != nil {
		return "", err
	}
	stat := &lakeFSObjectStats{}
	if err := f.getJSON(req, stat); err != nil {
		return "", err
	}
	if stat.PhysicalAddressExpiry == nil || *stat.PhysicalAddressExpiry == 0 {
		return "", fmt.Errorf("%w: could not get pre-signed URL", ErrLakeFSError)
	}
	f.cachedUrl = stat.PhysicalAddress
	f.expires = time.Unix(*stat.PhysicalAddressExpiry, 0).UTC()
	return f.cachedUrl, nil
}

func (f *LakeFSFetcher) Fetch(ctx context.Context, startOffset *int64, endOffset *int64) (io.ReadCloser, error) {
	if !f.preSignSupported {
		req, err := f.objectsURL(ctx, "", false)
		if err != nil {
			return nil, err
		}
		req.Header.Add("Authorization", f.cfg.authHeader())
		return rangeRequest(f.client, "lakefs.Get", req, startOffset, endOffset)
	}
	zipUrl, err := f.getURL(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, zipUrl, nil)
	if err != nil {
		return nil, err
	}
	return rangeRequest(f.client, "lakefs.Get", req, startOffset, endOffset)
}
