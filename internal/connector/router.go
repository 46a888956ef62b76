package connector

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/ir"
)

// timestampLayout is the run timestamp embedded in routed file names.
const timestampLayout = "20060102_150405"

// OutputName builds the routed file name for source:
// <stem>_<YYYYmmdd_HHMMSS>.<ext>, with a _quarantine suffix before the
// extension for quarantined data.
func OutputName(source string, at time.Time, quarantine bool, ext string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "dataset"
	}
	name := stem + "_" + at.UTC().Format(timestampLayout)
	if quarantine {
		name += "_quarantine"
	}
	return name + "." + ext
}

// Router delivers datasets to a contract's destination or quarantine.
// It satisfies engine.Router.
type Router struct {
	registry *Registry
	log      *slog.Logger
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{registry: registry, log: log}
}

// Route writes data to the destination on pass and to quarantine on fail.
// A missing location, or any other verdict, routes nowhere.
func (r *Router) Route(ctx context.Context, verdict ir.Verdict, c *ir.Contract, data *dataset.Dataset, rc ir.RunContext) (string, error) {
	var (
		loc        *ir.Location
		quarantine bool
	)
	switch verdict {
	case ir.VerdictPass:
		loc = c.Destination
	case ir.VerdictFail:
		loc, quarantine = c.Quarantine, true
	}
	if loc == nil {
		return "", nil
	}

	sink, err := r.registry.Sink(*loc)
	if err != nil {
		return "", err
	}
	if _, ok := sink.(NotMoved); ok {
		return "", nil
	}

	drv, err := outputDriver(*loc, c.Source)
	if err != nil {
		return "", err
	}
	body, err := drv.Encode(data)
	if err != nil {
		return "", ir.Wrap(ir.ErrDatasetAccess, err, "encode routed dataset").WithContract(c.Name)
	}

	name := OutputName(c.Source.Location, rc.RunTimestamp, quarantine, drv.Extension())
	dest, err := sink.Put(ctx, *loc, name, body)
	if err != nil {
		return "", err
	}
	r.log.Info("dataset routed", "contract", c.Name, "verdict", verdict, "to", dest)
	return dest, nil
}

// outputDriver uses the target's format, falling back to the source's.
func outputDriver(target, source ir.Location) (Driver, error) {
	if target.Format != "" {
		return DriverFor(target)
	}
	return DriverFor(source)
}
