// Package tracing provides OpenTelemetry tracing options.
package tracing

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/smaxiso/portfolio-rag/pkg/options"
)

// Supported exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLP     = "otlp"
	ExporterOTLPGRPC = "otlp-grpc"
)

var _ options.IOptions = (*Options)(nil)

// Options configures span export.
type Options struct {
	Exporter    string  `json:"exporter" mapstructure:"exporter"`
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint"`
	Insecure    bool    `json:"insecure" mapstructure:"insecure"`
	SampleRatio float64 `json:"sample-ratio" mapstructure:"sample-ratio"`
	ServiceName string  `json:"service-name" mapstructure:"service-name"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Exporter:    ExporterNone,
		Endpoint:    "localhost:4318",
		Insecure:    true,
		SampleRatio: 1.0,
		ServiceName: "portfolio-rag",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "tracing."
	fs.StringVar(&o.Exporter, p+"exporter", o.Exporter, "Span exporter (none|stdout|otlp|otlp-grpc).")
	fs.StringVar(&o.Endpoint, p+"endpoint", o.Endpoint, "OTLP collector endpoint (host:port).")
	fs.BoolVar(&o.Insecure, p+"insecure", o.Insecure, "Disable TLS for the OTLP exporter.")
	fs.Float64Var(&o.SampleRatio, p+"sample-ratio", o.SampleRatio, "Trace sampling ratio.")
	fs.StringVar(&o.ServiceName, p+"service-name", o.ServiceName, "service.name resource attribute.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP, ExporterOTLPGRPC:
	default:
		errs = append(errs, fmt.Errorf("tracing exporter %q is not supported", o.Exporter))
	}
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing sample-ratio must be within [0, 1]"))
	}
	return errs
}
