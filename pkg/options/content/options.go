// Package content provides options for the portfolio content database.
package content

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/smaxiso/portfolio-rag/pkg/options"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var _ options.IOptions = (*Options)(nil)

// Options contains the read-only content database connection.
type Options struct {
	Driver string `json:"driver" mapstructure:"driver"`
	DSN    string `json:"-" mapstructure:"dsn"`
	// LogSQL logs every statement at debug level.
	LogSQL bool `json:"log-sql" mapstructure:"log-sql"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Driver: DriverSQLite,
		DSN:    "portfolio.db",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "content."
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Content database driver (sqlite|postgres|mysql).")
	fs.StringVar(&o.DSN, p+"dsn", o.DSN, "Content database DSN.")
	fs.BoolVar(&o.LogSQL, p+"log-sql", o.LogSQL, "Log SQL statements.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("content driver %q is not supported", o.Driver))
	}
	if o.DSN == "" {
		errs = append(errs, fmt.Errorf("content dsn is required"))
	}
	return errs
}
