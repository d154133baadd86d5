package s3store

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
)

// Keys recognized in a link-configuration map. The map is shared with
// alias_* entries and host-runtime keys, so anything unrecognized is
// ignored here.
const (
	keyAccessKeyID     = "access_key_id"
	keySecretAccessKey = "secret_access_key"
	keySessionToken    = "session_token"
	keyRegion          = "region"
	keyEndpoint        = "endpoint"
	keyForcePathStyle  = "force_path_style"
	keyTLSCAFile       = "tls_ca_file"
	keySTSRole         = "sts_role"
	keySTSSession      = "sts_session"
)

// StorageConfig holds everything needed to construct one link's S3 client.
// When no static credentials are configured the SDK's default credential
// chain (environment, shared config, instance role) applies.
type StorageConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Endpoint        string
	// Path-style addressing is required by minio, so it defaults to on
	// even though AWS has deprecated it.
	ForcePathStyle bool
	// Optional PEM bundle replacing the system trust roots for backend
	// TLS. Useful against self-signed test endpoints.
	TLSCAFile string
	// STSRole is an IAM role ARN to assume via STS; the base credentials
	// above (or the default chain) perform the exchange. STSSession is the
	// session name passed through to STS, meaningless without a role.
	STSRole    string
	STSSession string
}

// ConfigFromValues parses a link-configuration map. defaults supplies
// provider-level settings (region, endpoint) used when the map leaves them
// unset.
func ConfigFromValues(values map[string]string, defaults StorageConfig) (StorageConfig, error) {
	cfg := defaults
	cfg.ForcePathStyle = true

	if v := values[keyAccessKeyID]; v != "" {
		cfg.AccessKeyID = v
	}
	if v := values[keySecretAccessKey]; v != "" {
		cfg.SecretAccessKey = v
	}
	if v := values[keySessionToken]; v != "" {
		cfg.SessionToken = v
	}
	if v := values[keyRegion]; v != "" {
		cfg.Region = v
	}
	if v := values[keyEndpoint]; v != "" {
		cfg.Endpoint = v
	}
	if v := values[keyTLSCAFile]; v != "" {
		cfg.TLSCAFile = v
	}
	if v := values[keySTSRole]; v != "" {
		cfg.STSRole = v
	}
	if v := values[keySTSSession]; v != "" {
		cfg.STSSession = v
	}
	if v, ok := values[keyForcePathStyle]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.Wrap(err, "invalid force_path_style value")
		}
		cfg.ForcePathStyle = b
	}

	if cfg.STSSession != "" && cfg.STSRole == "" {
		return cfg, errors.New("sts_session set without sts_role")
	}
	if cfg.Region == "" {
		return cfg, errors.New("no region configured for link")
	}
	return cfg, nil
}

// newSession builds the AWS session for this configuration. No network
// calls happen here; bad credentials only fail once a request is made.
func (c StorageConfig) newSession() (*session.Session, error) {
	awsCfg := aws.Config{
		Region:           aws.String(c.Region),
		S3ForcePathStyle: aws.Bool(c.ForcePathStyle),
	}
	if c.Endpoint != "" {
		awsCfg.Endpoint = aws.String(c.Endpoint)
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(
			c.AccessKeyID, c.SecretAccessKey, c.SessionToken)
	}
	if c.TLSCAFile != "" {
		httpClient, err := newTLSClient(c.TLSCAFile)
		if err != nil {
			return nil, err
		}
		awsCfg.HTTPClient = httpClient
	}

	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS session")
	}
	if c.STSRole != "" {
		// The exchange itself happens lazily on the first request, like
		// every other credential failure mode here.
		sess.Config.Credentials = stscreds.NewCredentials(sess, c.STSRole,
			func(p *stscreds.AssumeRoleProvider) {
				if c.STSSession != "" {
					p.RoleSessionName = c.STSSession
				}
			})
	}
	return sess, nil
}

// newTLSClient returns an http client whose TLS config trusts only the
// certificates in the given PEM bundle.
func newTLSClient(caFile string) (*http.Client, error) {
	pemData, err := ioutil.ReadFile(caFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read TLS CA bundle")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, errors.Errorf("no certificates parsed from %s", caFile)
	}
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}, nil
}
