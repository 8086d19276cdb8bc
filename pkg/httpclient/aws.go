package httpclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// awsSigV4Adapter signs every request with credentials from the default AWS
// chain (environment, shared config, IMDS). Credentials are resolved lazily
// on the first request.
func awsSigV4Adapter(cfg Config) (http.RoundTripper, error) {
	ac := cfg.AWS
	if ac == nil {
		return nil, invalidConfig("adapter %s requires an aws section", AdapterAWSSigV4)
	}
	if ac.Service == "" {
		return nil, invalidConfig("aws.service is required")
	}
	if ac.Region == "" {
		return nil, invalidConfig("aws.region is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(ac.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	return newSigV4Transport(newBaseTransport(cfg.Timeout), awsCfg.Credentials, ac.Service, ac.Region), nil
}

// sigV4Transport signs requests with AWS Signature Version 4.
type sigV4Transport struct {
	base        http.RoundTripper
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	service     string
	region      string
	now         func() time.Time
}

func newSigV4Transport(base http.RoundTripper, creds aws.CredentialsProvider, service, region string) *sigV4Transport {
	return &sigV4Transport{
		base:        base,
		credentials: creds,
		signer:      v4.NewSigner(),
		service:     service,
		region:      region,
		now:         time.Now,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *sigV4Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.credentials == nil {
		return nil, fmt.Errorf("aws_sigv4: no credentials provider configured")
	}
	creds, err := t.credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("aws_sigv4: resolve credentials: %w", err)
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("aws_sigv4: read request body: %w", err)
		}
	}

	out := req.Clone(ctx)
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}

	payloadHash := hashPayload(body)
	out.Header.Set("X-Amz-Content-Sha256", payloadHash)

	if err := t.signer.SignHTTP(ctx, creds, out, payloadHash, t.service, t.region, t.now()); err != nil {
		return nil, fmt.Errorf("aws_sigv4: sign request: %w", err)
	}

	return t.base.RoundTrip(out)
}

func hashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
