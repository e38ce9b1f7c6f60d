package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"estatechain/server/internal/models"
)

// Credentials authenticate against the Pinata API. JWT takes precedence over
// the key pair when both are set.
type Credentials struct {
	APIKey    string
	SecretKey string
	JWT       string
}

// Client pins raw files and JSON documents to IPFS through Pinata.
type Client struct {
	logger  *logrus.Logger
	baseURL string
	creds   Credentials
	client  *http.Client
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinJSONRequest struct {
	PinataOptions  pinataOptions  `json:"pinataOptions"`
	PinataMetadata pinataMetadata `json:"pinataMetadata"`
	PinataContent  interface{}    `json:"pinataContent"`
}

type pinataOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinataMetadata struct {
	Name string `json:"name,omitempty"`
}

// NewClient creates a Pinata client. A zero timeout defaults to 60 seconds.
func NewClient(baseURL string, creds Credentials, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  &http.Client{Timeout: timeout},
	}
}

// PinBytes uploads content as a file and returns its content address.
func (c *Client) PinBytes(ctx context.Context, name string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: empty file %q", models.ErrPinningFailed, name)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create form file: %v", models.ErrPinningFailed, err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("%w: failed to write form file: %v", models.ErrPinningFailed, err)
	}
	if err := writer.WriteField("pinataMetadata", fmt.Sprintf(`{"name":%q}`, name)); err != nil {
		return "", fmt.Errorf("%w: failed to write metadata: %v", models.ErrPinningFailed, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to close form: %v", models.ErrPinningFailed, err)
	}

	return c.pin(ctx, "/pinning/pinFileToIPFS", writer.FormDataContentType(), &body, name)
}

// PinDocument uploads doc as JSON and returns its content address.
func (c *Client) PinDocument(ctx context.Context, name string, doc interface{}) (string, error) {
	payload := pinJSONRequest{
		PinataOptions:  pinataOptions{CIDVersion: 1},
		PinataMetadata: pinataMetadata{Name: name},
		PinataContent:  doc,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal document: %v", models.ErrPinningFailed, err)
	}

	return c.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(jsonData), name)
}

func (c *Client) pin(ctx context.Context, path, contentType string, body io.Reader, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", models.ErrPinningFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("name", name).Error("Pin request failed")
		return "", fmt.Errorf("%w: request failed: %v", models.ErrPinningFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", models.ErrPinningFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"name":   name,
			"status": resp.StatusCode,
		}).Error("Pinning service rejected content")

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "", fmt.Errorf("%w: invalid pinning credentials", models.ErrPinningFailed)
		case http.StatusTooManyRequests:
			return "", fmt.Errorf("%w: rate limited by pinning service", models.ErrPinningFailed)
		default:
			return "", fmt.Errorf("%w: status %d: %s", models.ErrPinningFailed, resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
	}

	var result pinResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", models.ErrPinningFailed, err)
	}
	if result.IpfsHash == "" {
		return "", fmt.Errorf("%w: response carried no content address", models.ErrPinningFailed)
	}

	c.logger.WithFields(logrus.Fields{
		"name":     name,
		"cid":      result.IpfsHash,
		"pin_size": result.PinSize,
	}).Info("Pinned content")

	return result.IpfsHash, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.creds.JWT != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.JWT)
		return
	}
	req.Header.Set("pinata_api_key", c.creds.APIKey)
	req.Header.Set("pinata_secret_api_key", c.creds.SecretKey)
}
