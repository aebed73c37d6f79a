// Package client is the remote tensor store backend. Every operation is one
// HTTP call against a gateway; status codes map back onto the store faults.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/models"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/internal/httpclient"
	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// DefaultTimeout bounds each gateway request.
const DefaultTimeout = 30 * time.Second

const maxBodyBytes = 32 << 20

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration   // Default: DefaultTimeout
	HTTPClient httpclient.Doer // Default: safer client without private-address blocking
}

// Client talks to a gateway. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    httpclient.Doer
	log     *zap.SugaredLogger
}

var _ apacheta.TensorStore = (*Client)(nil)

// New validates the base URL and builds a client. A trailing slash on the
// base URL is dropped.
func New(opts Options, log *zap.SugaredLogger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.Newf("invalid gateway URL %q", opts.BaseURL)
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		blockPrivate := false
		opts.HTTPClient = httpclient.NewSaferClientWithOptions(opts.Timeout, httpclient.SaferClientOptions{
			BlockPrivateIP: &blockPrivate,
		})
	}
	return &Client{
		baseURL: base,
		apiKey:  opts.APIKey,
		http:    opts.HTTPClient,
		log:     logger.OrNop(log).With(logger.FieldBackend, "remote"),
	}, nil
}

// BaseURL returns the normalized gateway URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases pooled connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// CheckAccess always allows; the gateway's policy is authoritative.
func (c *Client) CheckAccess(caller, operation, target string) bool { return true }

// GetInterfaceVersion returns the client's own contract version.
func (c *Client) GetInterfaceVersion() string { return apacheta.InterfaceVersion }

// ServerVersion asks the gateway for its contract version.
func (c *Client) ServerVersion() (string, error) {
	var out struct {
		InterfaceVersion string `json:"interface_version"`
	}
	body, err := c.get("/version", nil, "server_version", "")
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errors.WrapStoreError(err, "server_version")
	}
	return out.InterfaceVersion, nil
}

// response is a completed gateway exchange.
type response struct {
	status int
	body   []byte
}

func (c *Client) do(method, path string, query url.Values, body []byte) (response, error) {
	target := c.baseURL + apacheta.APIPrefix + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, target, reader)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apacheta.HeaderInterfaceVersion, apacheta.InterfaceVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apacheta.HeaderAPIKey, c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, err
	}
	c.log.Debugw("gateway call",
		logger.FieldSymbol, sym.Gateway,
		logger.FieldMethod, method,
		logger.FieldPath, path,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return response{status: resp.StatusCode, body: data}, nil
}

// fault turns a non-success status into the matching store fault.
func fault(r response, op, kind, target string) error {
	msg := gatewayMessage(r.body)
	switch {
	case r.status == http.StatusNotFound:
		return errors.NewNotFoundError("%s %s: %s", op, target, msg)
	case r.status == http.StatusConflict:
		return errors.NewImmutableError(kind, target)
	case r.status == http.StatusForbidden:
		return errors.NewAccessDeniedError("remote", op, target)
	case r.status == http.StatusBadRequest:
		return errors.NewInterfaceVersionError(apacheta.InterfaceVersion, "rejected by gateway: "+msg)
	}
	return errors.WrapStoreError(errors.Newf("gateway returned HTTP %d: %s", r.status, msg), op)
}

func gatewayMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) get(path string, query url.Values, op, target string) ([]byte, error) {
	r, err := c.do(http.MethodGet, path, query, nil)
	if err != nil {
		return nil, errors.WrapStoreError(err, op)
	}
	if r.status != http.StatusOK {
		return nil, fault(r, op, "", target)
	}
	return r.body, nil
}

func (c *Client) put(r models.Record) error {
	kind := r.Kind()
	op := apacheta.StoreOperation(kind)
	data, err := apacheta.EncodeRecord(r)
	if err != nil {
		return err
	}
	resp, err := c.do(http.MethodPost, "/"+kind.Collection(), nil, data)
	if err != nil {
		return errors.WrapStoreError(err, op)
	}
	if resp.status != http.StatusCreated {
		return fault(resp, op, string(kind), r.RecordID().String())
	}
	return nil
}

// read GETs path and decodes the body strictly into T.
func read[T any](c *Client, path string, query url.Values, op, target string) (T, error) {
	var zero T
	body, err := c.get(path, query, op, target)
	if err != nil {
		return zero, err
	}
	out, err := models.Decode[T](body)
	if err != nil {
		return zero, errors.WrapStoreError(err, op)
	}
	return out, nil
}

// named runs a named query with its single parameter, if any.
func named[T any](c *Client, name, arg string) (T, error) {
	var query url.Values
	if param := apacheta.QueryParams[name]; param != "" {
		query = url.Values{param: []string{arg}}
	}
	return read[T](c, "/queries/"+name, query, name, arg)
}

func (c *Client) StoreTensor(t models.TensorRecord) error { return c.put(t) }
func (c *Client) StoreCompositionEdge(e models.CompositionEdge) error { return c.put(e) }
func (c *Client) StoreCorrection(r models.CorrectionRecord) error { return c.put(r) }
func (c *Client) StoreDissent(d models.DissentRecord) error { return c.put(d) }
func (c *Client) StoreNegation(n models.NegationRecord) error { return c.put(n) }
func (c *Client) StoreBootstrap(b models.BootstrapRecord) error { return c.put(b) }
func (c *Client) StoreSchemaEvolution(s models.SchemaEvolutionRecord) error { return c.put(s) }
func (c *Client) StoreEntity(e models.EntityResolution) error { return c.put(e) }

func (c *Client) GetTensor(id uuid.UUID) (models.TensorRecord, error) {
	return read[models.TensorRecord](c, "/tensors/"+id.String(), nil, "get_tensor", id.String())
}

func (c *Client) GetStrand(id uuid.UUID, index int) (models.TensorRecord, error) {
	path := "/tensors/" + id.String() + "/strands/" + strconv.Itoa(index)
	return read[models.TensorRecord](c, path, nil, "get_strand", id.String())
}

func (c *Client) GetEntity(id uuid.UUID) (models.EntityResolution, error) {
	return read[models.EntityResolution](c, "/entities/"+id.String(), nil, "get_entity", id.String())
}

func (c *Client) ListTensors() ([]models.TensorRecord, error) {
	return read[[]models.TensorRecord](c, "/tensors", nil, "list_tensors", "")
}

func (c *Client) CountRecords() (map[string]int, error) {
	return read[map[string]int](c, "/counts", nil, "count_records", "")
}

func (c *Client) ProjectState() (apacheta.ProjectState, error) {
	return named[apacheta.ProjectState](c, apacheta.QueryProjectState, "")
}

func (c *Client) ClaimsAbout(topic string) ([]apacheta.ClaimMatch, error) {
	return named[[]apacheta.ClaimMatch](c, apacheta.QueryClaimsAbout, topic)
}

func (c *Client) CorrectionChain(claimID uuid.UUID) ([]models.CorrectionRecord, error) {
	return named[[]models.CorrectionRecord](c, apacheta.QueryCorrectionChain, claimID.String())
}

func (c *Client) EpistemicStatus(claimID uuid.UUID) (apacheta.EpistemicStatus, error) {
	return named[apacheta.EpistemicStatus](c, apacheta.QueryEpistemicStatus, claimID.String())
}

func (c *Client) Disagreements() ([]apacheta.Disagreement, error) {
	return named[[]apacheta.Disagreement](c, apacheta.QueryDisagreements, "")
}

func (c *Client) CompositionGraph() ([]models.CompositionEdge, error) {
	return named[[]models.CompositionEdge](c, apacheta.QueryCompositionGraph, "")
}

func (c *Client) Bridges() ([]models.CompositionEdge, error) {
	return named[[]models.CompositionEdge](c, apacheta.QueryBridges, "")
}

func (c *Client) Lineage(tensorID uuid.UUID) ([]models.TensorRecord, error) {
	return named[[]models.TensorRecord](c, apacheta.QueryLineage, tensorID.String())
}

func (c *Client) ReadingOrder(tag string) ([]models.TensorRecord, error) {
	return named[[]models.TensorRecord](c, apacheta.QueryReadingOrder, tag)
}

func (c *Client) CrossModel() ([]models.TensorRecord, error) {
	return named[[]models.TensorRecord](c, apacheta.QueryCrossModel, "")
}

func (c *Client) ErrorClasses() ([]apacheta.ClaimMatch, error) {
	return named[[]apacheta.ClaimMatch](c, apacheta.QueryErrorClasses, "")
}

func (c *Client) AntiPatterns() ([]apacheta.ClaimMatch, error) {
	return named[[]apacheta.ClaimMatch](c, apacheta.QueryAntiPatterns, "")
}

func (c *Client) UnreliableSignals() ([]apacheta.ClaimMatch, error) {
	return named[[]apacheta.ClaimMatch](c, apacheta.QueryUnreliableSignals, "")
}

func (c *Client) Losses(tensorID uuid.UUID) ([]models.DeclaredLoss, error) {
	return named[[]models.DeclaredLoss](c, apacheta.QueryLosses, tensorID.String())
}

func (c *Client) LossPatterns() ([]apacheta.LossPattern, error) {
	return named[[]apacheta.LossPattern](c, apacheta.QueryLossPatterns, "")
}

func (c *Client) OpenQuestions() ([]apacheta.OpenQuestion, error) {
	return named[[]apacheta.OpenQuestion](c, apacheta.QueryOpenQuestions, "")
}

func (c *Client) Authorship(tensorID uuid.UUID) (apacheta.Authorship, error) {
	return named[apacheta.Authorship](c, apacheta.QueryAuthorship, tensorID.String())
}

func (c *Client) EntitiesByUUID(entity uuid.UUID) ([]models.EntityResolution, error) {
	return named[[]models.EntityResolution](c, apacheta.QueryEntitiesByUUID, entity.String())
}

func (c *Client) Unlearn(topic string) (apacheta.UnlearnImpact, error) {
	return named[apacheta.UnlearnImpact](c, apacheta.QueryUnlearn, topic)
}

func (c *Client) Compositions(tensorID uuid.UUID) ([]models.CompositionEdge, error) {
	return named[[]models.CompositionEdge](c, apacheta.QueryCompositions, tensorID.String())
}

func (c *Client) CorrectionsFor(tensorID uuid.UUID) ([]models.CorrectionRecord, error) {
	return named[[]models.CorrectionRecord](c, apacheta.QueryCorrectionsFor, tensorID.String())
}

func (c *Client) DissentsFor(tensorID uuid.UUID) ([]models.DissentRecord, error) {
	return named[[]models.DissentRecord](c, apacheta.QueryDissentsFor, tensorID.String())
}

func (c *Client) TensorsByModel(family string) ([]models.TensorRecord, error) {
	return named[[]models.TensorRecord](c, apacheta.QueryTensorsByModel, family)
}

func (c *Client) Bootstraps(instanceID string) ([]models.BootstrapRecord, error) {
	return named[[]models.BootstrapRecord](c, apacheta.QueryBootstraps, instanceID)
}

func (c *Client) SchemaHistory() ([]models.SchemaEvolutionRecord, error) {
	return named[[]models.SchemaEvolutionRecord](c, apacheta.QuerySchemaHistory, "")
}
