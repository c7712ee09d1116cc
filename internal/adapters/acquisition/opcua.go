package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// OPCUAConfig captures the runtime details required to open an OPC UA
// session against the lock-in acquisition unit.
type OPCUAConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode"`
	SecurityPolicy  string        `yaml:"security_policy"`
	ApplicationName string        `yaml:"application_name"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`

	Channels ChannelNodes `yaml:"channels"`

	// UncertaintyNode is an optional writable node the unit uses to retune
	// gain and oversampling for a target single-sample uncertainty.
	UncertaintyNode string `yaml:"uncertainty_node"`
}

// ChannelNodes maps the six lock-in channels to their server node IDs.
type ChannelNodes struct {
	XInPhase    string `yaml:"x_in_phase"`
	XQuadrature string `yaml:"x_quadrature"`
	YInPhase    string `yaml:"y_in_phase"`
	YQuadrature string `yaml:"y_quadrature"`
	ZInPhase    string `yaml:"z_in_phase"`
	ZQuadrature string `yaml:"z_quadrature"`
}

func (c ChannelNodes) list() [6]string {
	return [6]string{c.XInPhase, c.XQuadrature, c.YInPhase, c.YQuadrature, c.ZInPhase, c.ZQuadrature}
}

func (c *OPCUAConfig) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "Fieldbench"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
}

func (c *OPCUAConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	for i, id := range c.Channels.list() {
		if id == "" {
			return fmt.Errorf("channel node %d is not configured", i)
		}
	}
	return nil
}

// OPCUAChain reads the six lock-in channels from an OPC UA server. Reads are
// synchronous: one AcquireSample is one read request covering all channels,
// so a sample is internally consistent.
type OPCUAChain struct {
	cfg    OPCUAConfig
	client *opcua.Client
	nodes  [6]*ua.NodeID

	mu          sync.Mutex
	uncertainty float64
	ready       bool
}

func NewOPCUAChain(cfg OPCUAConfig) (*OPCUAChain, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &OPCUAChain{cfg: cfg}
	for i, raw := range cfg.Channels.list() {
		id, err := ua.ParseNodeID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", raw, err)
		}
		c.nodes[i] = id
	}
	return c, nil
}

func (c *OPCUAChain) Connect(ctx context.Context) error {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(c.cfg.SecurityPolicy)),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if c.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	client, err := opcua.NewClient(c.cfg.Endpoint, opts...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

func (c *OPCUAChain) Close(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.ready = false
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *OPCUAChain) AcquireSample() (domain.Measurement, error) {
	c.mu.Lock()
	client := c.client
	ready := c.ready
	u := c.uncertainty
	c.mu.Unlock()

	if client == nil || !ready {
		return domain.Measurement{}, &ports.AcquisitionError{
			Op:  "sample",
			Err: errors.New("chain not connected or not configured"),
		}
	}

	nodesToRead := make([]*ua.ReadValueID, len(c.nodes))
	for i, id := range c.nodes {
		nodesToRead[i] = &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue}
	}
	req := &ua.ReadRequest{
		NodesToRead:        nodesToRead,
		TimestampsToReturn: ua.TimestampsToReturnServer,
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReadTimeout)
	defer cancel()

	resp, err := client.Read(ctx, req)
	if err != nil {
		return domain.Measurement{}, &ports.AcquisitionError{Op: "read", Err: err}
	}
	if len(resp.Results) != len(c.nodes) {
		return domain.Measurement{}, &ports.AcquisitionError{
			Op:  "read",
			Err: fmt.Errorf("expected %d results, got %d", len(c.nodes), len(resp.Results)),
		}
	}

	var v [6]float64
	at := time.Now()
	for i, res := range resp.Results {
		if res.Status != ua.StatusOK {
			return domain.Measurement{}, &ports.AcquisitionError{
				Op:  "read",
				Err: fmt.Errorf("channel %d status %s", i, res.Status),
			}
		}
		fv, ok := variantToFloat(res.Value)
		if !ok {
			return domain.Measurement{}, &ports.AcquisitionError{
				Op:  "read",
				Err: fmt.Errorf("channel %d has unsupported type %T", i, res.Value.Value()),
			}
		}
		v[i] = fv
		if i == 0 && !res.ServerTimestamp.IsZero() {
			at = res.ServerTimestamp
		}
	}

	return domain.NewMeasurement(v[0], v[1], v[2], v[3], v[4], v[5], at, u)
}

// ConfigureForUncertainty forwards the target to the gateway's uncertainty
// node when one is configured. A zero target keeps the gateway's current
// setting and skips the write.
func (c *OPCUAChain) ConfigureForUncertainty(target float64) error {
	if target < 0 {
		return &ports.AcquisitionError{
			Op:  "configure",
			Err: fmt.Errorf("target uncertainty must not be negative, got %g", target),
		}
	}

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return &ports.AcquisitionError{Op: "configure", Err: errors.New("chain not connected")}
	}

	if c.cfg.UncertaintyNode != "" && target > 0 {
		id, err := ua.ParseNodeID(c.cfg.UncertaintyNode)
		if err != nil {
			return &ports.AcquisitionError{Op: "configure", Err: err}
		}
		variant, err := ua.NewVariant(target)
		if err != nil {
			return &ports.AcquisitionError{Op: "configure", Err: err}
		}
		req := &ua.WriteRequest{
			NodesToWrite: []*ua.WriteValue{{
				NodeID:      id,
				AttributeID: ua.AttributeIDValue,
				Value:       &ua.DataValue{EncodingMask: ua.DataValueValue, Value: variant},
			}},
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReadTimeout)
		defer cancel()
		resp, err := client.Write(ctx, req)
		if err != nil {
			return &ports.AcquisitionError{Op: "configure", Err: err}
		}
		if len(resp.Results) == 0 || resp.Results[0] != ua.StatusOK {
			return &ports.AcquisitionError{
				Op:  "configure",
				Err: fmt.Errorf("uncertainty node write rejected"),
			}
		}
	}

	c.mu.Lock()
	if target > 0 {
		c.uncertainty = target
	}
	c.ready = true
	c.mu.Unlock()
	return nil
}

func (c *OPCUAChain) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil && c.ready
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.AcquisitionPort = (*OPCUAChain)(nil)
