package stages

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/sluice/pkg/domain"
	"github.com/aretw0/sluice/pkg/registry"
)

type patternArgs struct {
	Routes []struct {
		Outlet string `mapstructure:"outlet"`
		Match  string `mapstructure:"match"`
	} `mapstructure:"routes"`
	Fallback string `mapstructure:"fallback"`
}

type route struct {
	outlet string
	re     *regexp.Regexp
}

// Pattern is a sorter routing on the item's derived name. The first route
// whose regular expression matches wins; otherwise the item goes to the
// fallback outlet.
type Pattern struct {
	domain.Base
	routes   []route
	fallback string
}

// NewPattern builds a Pattern sorter. Args: routes (list of {outlet, match}),
// fallback (default "default"). The outlets are the route outlets in order of
// first appearance, plus the fallback.
func NewPattern(cfg registry.Config) (domain.Stage, error) {
	var args patternArgs
	if err := registry.Decode(cfg.Args, &args); err != nil {
		return nil, err
	}
	if args.Fallback == "" {
		args.Fallback = domain.DefaultOutlet
	}

	var outlets []string
	routes := make([]route, 0, len(args.Routes))
	for i, r := range args.Routes {
		if r.Outlet == "" {
			return nil, fmt.Errorf("routes[%d]: outlet is required", i)
		}
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return nil, fmt.Errorf("routes[%d]: invalid pattern: %w", i, err)
		}
		routes = append(routes, route{outlet: r.Outlet, re: re})
		if !domain.HasPort(outlets, r.Outlet) {
			outlets = append(outlets, r.Outlet)
		}
	}
	if !domain.HasPort(outlets, args.Fallback) {
		outlets = append(outlets, args.Fallback)
	}

	return &Pattern{
		Base:     domain.NewBase(cfg.Name, domain.KindSorter, outlets...),
		routes:   routes,
		fallback: args.Fallback,
	}, nil
}

func (s *Pattern) Sort(ctx context.Context, item *domain.Item) (string, error) {
	for _, r := range s.routes {
		if r.re.MatchString(item.Name()) {
			return r.outlet, nil
		}
	}
	return s.fallback, nil
}
