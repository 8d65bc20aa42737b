package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"max.com/optpricer/pkg/calendar"
	"max.com/optpricer/pkg/config"
	"max.com/optpricer/pkg/lattice"
	"max.com/optpricer/pkg/quote"
)

// app 一次命令执行所需的组件，全部由配置显式构造
type app struct {
	cfg    config.Config
	tree   lattice.Tree
	cal    *calendar.Service
	pricer *lattice.Pricer
}

// newApp treeOverride / depthOverride 为零值时使用配置
func newApp(cfg config.Config, treeOverride string, depthOverride int) (*app, error) {
	if treeOverride != "" {
		cfg.Pricer.Tree = treeOverride
	}
	if depthOverride > 0 {
		cfg.Pricer.Depth = depthOverride
	}
	tree, err := cfg.Pricer.TreeKind()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, tree: tree}

	opts := append(cfg.Pricer.Options(), lattice.WithLogger(log.StandardLogger()))
	if cfg.Calendar.Enabled {
		if a.cal, err = buildCalendar(cfg.Calendar); err != nil {
			return nil, err
		}
		opts = append(opts, lattice.WithCalendar(a.cal))
	}
	a.pricer = lattice.NewPricer(tree, opts...)
	return a, nil
}

func buildCalendar(cc config.CalendarConfig) (*calendar.Service, error) {
	var opts []calendar.ServiceOption
	if cc.Closures != "" {
		f, err := os.Open(cc.Closures)
		if err != nil {
			return nil, fmt.Errorf("open closures: %w", err)
		}
		defer f.Close()
		closures, err := calendar.ReadClosures(f)
		if err != nil {
			return nil, err
		}
		opts = append(opts, calendar.WithClosures(closures))
	}
	return calendar.NewService(cc.FromYear, cc.ToYear, opts...)
}

// sink 按配置创建报价发布目的地；配置多个时扇出
func (a *app) sink() (quote.Sink, error) {
	sc := a.cfg.Sink
	if err := quote.InitIDGenerator(sc.NodeID); err != nil {
		return nil, err
	}
	kinds := sc.Kinds()
	if len(kinds) == 0 {
		return quote.Discard{}, nil
	}

	fan := quote.NewFanout()
	for _, kind := range kinds {
		var (
			s   quote.Sink
			err error
		)
		switch kind {
		case config.SinkNATS:
			s, err = quote.NewNATSSink(sc.NATSURL, sc.Subject)
		case config.SinkKafka:
			kc := quote.DefaultKafkaConfig(sc.KafkaBrokers)
			if sc.Topic != "" {
				kc.Topic = sc.Topic
			}
			s, err = quote.NewKafkaSink(kc)
		default:
			err = fmt.Errorf("unknown sink %q", kind)
		}
		if err != nil {
			_ = fan.Close()
			return nil, err
		}
		fan.Add(s)
	}
	return fan, nil
}
