package main

import (
	"context"
	"fmt"
	"maps"
	"math/rand"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"
)

const proceduralScene = "Procedural"

type System struct {
	controller   Controller
	benchmarkers []Benchmarker
	actionGroups []ActionGroup
	houses       []House
	config       *BenchmarkConfig
	rng          *rand.Rand
	logger       *zap.SugaredLogger
	id           string
	build        BuildInfo
	hostStat     func() SysInfo
}

type Experiment struct {
	Scene       string
	House       House
	Benchmarker Benchmarker
	Index       int
}

type SysInfo struct {
	Arch     string
	Hostname string
	Platform string
	CPUCount int
	CPUFreq  float64
	RAM      float64
}

func HostStat() SysInfo {
	info := SysInfo{Arch: runtime.GOARCH}
	if hostStat, err := host.Info(); err == nil {
		info.Hostname = hostStat.Hostname
		info.Platform = hostStat.Platform
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		totalFreq := 0.0
		for _, cpu := range cpuStat {
			totalFreq += cpu.Mhz
		}
		info.CPUCount = len(cpuStat)
		info.CPUFreq = totalFreq / float64(len(cpuStat))
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = float64(vmStat.Total) / 1024 / 1024 / 1024
	}
	return info
}

func NewSystem(config *BenchmarkConfig, controller Controller, houses []House, logger *zap.SugaredLogger) (*System, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	benchmarkers, err := NewBenchmarkers(config.Benchmarkers, config.OnlyTransformedAggregates, logger)
	if err != nil {
		return nil, err
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	groups, err := CompleteActionGroups(config.ActionGroups, config.ActionSampleCount, rng)
	if err != nil {
		return nil, err
	}
	return &System{
		controller:   controller,
		benchmarkers: benchmarkers,
		actionGroups: groups,
		houses:       houses,
		config:       config,
		rng:          rng,
		logger:       logger,
		id:           uuid.NewString(),
		hostStat:     HostStat,
	}, nil
}

func (s *System) ID() string { return s.id }

// SetBuild records the simulator build reported by the controller.
func (s *System) SetBuild(build BuildInfo) { s.build = build }

// Experiments lists every (scene or house, sample index, benchmarker) combination
// in execution order: plain scenes first, then procedural houses.
func (s *System) Experiments() []Experiment {
	type target struct {
		scene string
		house House
	}
	targets := make([]target, 0, len(s.config.Scenes)+len(s.houses))
	for _, scene := range s.config.Scenes {
		targets = append(targets, target{scene: scene})
	}
	for _, house := range s.houses {
		targets = append(targets, target{scene: proceduralScene, house: house})
	}

	experiments := make([]Experiment, 0, len(targets)*s.config.ExperimentSampleCount*len(s.benchmarkers))
	for _, t := range targets {
		for i := 0; i < s.config.ExperimentSampleCount; i++ {
			for _, benchmarker := range s.benchmarkers {
				experiments = append(experiments, Experiment{
					Scene:       t.scene,
					House:       t.house,
					Benchmarker: benchmarker,
					Index:       i,
				})
			}
		}
	}
	return experiments
}

// Run executes all experiments against the controller, stops it and builds the report.
// Simulator failures are logged and skipped; only aggregation errors are returned.
func (s *System) Run(ctx context.Context) (*Report, error) {
	s.logger.Infof("start benchmark %v", s.id)
	info := s.hostStat()
	s.logger.Infof("host stat: %+v", info)

	experiments := s.Experiments()
	records := make([]Record, 0)
	for i, experiment := range experiments {
		if ctx.Err() != nil {
			s.logger.Warnf("benchmark interrupted after %v/%v experiments: %v", i, len(experiments), ctx.Err())
			break
		}
		records = append(records, s.RunExperiment(ctx, experiment)...)
	}

	if err := s.controller.Stop(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warnf("failed to stop controller: %v", err)
	}
	s.logger.Infof("collected %v records", len(records))

	return s.BuildReport(records, info)
}

func (s *System) RunExperiment(ctx context.Context, experiment Experiment) []Record {
	s.logger.Infof("loading scene %v", experiment.Scene)
	if err := s.controller.Reset(ctx, experiment.Scene); err != nil {
		s.logger.Warnf("failed to reset scene %v: %v", experiment.Scene, err)
		return nil
	}

	houseID := ""
	if experiment.House != nil {
		if !CreateProceduralHouse(ctx, s.controller, experiment.House, s.logger) {
			s.logger.Warnf("procedural house creation failed for house %v", experiment.House.ID())
			return nil
		}
		houseID = experiment.House.ID()
	}
	ApplyObjectFilter(ctx, s.controller, s.config.FilterObjectTypes, s.logger)

	s.logger.Infof("running %v, scene=%v, house=%v, experiment=%v", experiment.Benchmarker.Name(), experiment.Scene, houseID, experiment.Index)

	records := make([]Record, 0)
	for _, group := range s.actionGroups {
		if s.config.TeleportRandomBeforeActions {
			TeleportToRandomReachable(ctx, s.controller, experiment.House, s.rng, s.logger)
		}
		for i := 0; i < group.SampleCount; i++ {
			if ctx.Err() != nil {
				return records
			}
			action := group.Selector(group.Actions)
			record, err := experiment.Benchmarker.Benchmark(ctx, s.controller, action, map[string]any{
				"action_group":     group.Name,
				"house":            houseID,
				"scene":            experiment.Scene,
				"experiment_index": experiment.Index,
				"benchmarker":      experiment.Benchmarker.Name(),
			})
			if err != nil {
				s.logger.Warnf("failed to benchmark action %v in scene %v: %v", action.Action, experiment.Scene, err)
				continue
			}
			records = append(records, record)
		}
	}
	return records
}

func houseOrScene(scene, house string) string {
	if scene == proceduralScene {
		return house
	}
	return scene
}

// BuildReport aggregates the records of every benchmarker into the nested report.
func (s *System) BuildReport(records []Record, info SysInfo) (*Report, error) {
	report := NewReport(s.config.Name)
	report.ControllerParams = maps.Clone(s.config.InitParams)
	if report.ControllerParams == nil {
		report.ControllerParams = map[string]any{}
	}
	report.BenchmarkParams = map[string]any{
		"run_id":                  s.id,
		"platform":                info.Platform,
		"arch":                    info.Arch,
		"hostname":                info.Hostname,
		"cpu":                     info.CPUCount,
		"cpu_freq":                info.CPUFreq,
		"ram":                     info.RAM,
		"filter_object_types":     s.config.FilterObjectTypes,
		"action_sample_number":    s.config.ActionSampleCount,
		"experiment_sample_count": s.config.ExperimentSampleCount,
		"commit_id":               s.build.CommitID,
		"build_platform":          s.build.Platform,
	}
	for _, group := range s.actionGroups {
		report.ActionGroups[group.Name] = group.ActionNames()
	}

	for _, benchmarker := range s.benchmarkers {
		own := make([]Record, 0, len(records))
		for _, record := range records {
			if record["benchmarker"] == benchmarker.Name() {
				own = append(own, record)
			}
		}

		byBenchmarker, err := AggregateBy(own, []string{"benchmarker"}, benchmarker, true)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate by benchmarker: %w", err)
		}
		byActionGroup, err := AggregateBy(own, []string{"scene", "house", "benchmarker", "action_group"}, benchmarker, true)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate by action group: %w", err)
		}
		byAction := map[GroupKey]Aggregate{}
		if s.config.IncludePerActionBreakdown {
			byAction, err = AggregateBy(own, []string{"scene", "house", "benchmarker", "action"}, benchmarker, true)
			if err != nil {
				return nil, fmt.Errorf("failed to aggregate by action: %w", err)
			}
		}
		byScene, err := AggregateBy(own, []string{"scene", "house", "benchmarker"}, benchmarker, true)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate by scene: %w", err)
		}

		for key, aggregate := range byActionGroup {
			v := key.Values()
			report.Set(v[2], houseOrScene(v[0], v[1]), v[3], aggregate)
		}
		for key, aggregate := range byAction {
			v := key.Values()
			report.Set(v[2], houseOrScene(v[0], v[1]), v[3], aggregate)
		}
		for key, aggregate := range byScene {
			v := key.Values()
			if v[0] == proceduralScene {
				aggregate["procedural"] = true
			}
			report.Set(v[2], houseOrScene(v[0], v[1]), sceneKey, aggregate)
		}
		for key, aggregate := range byBenchmarker {
			report.SetGlobal(string(key), aggregate)
		}
	}
	return report, nil
}
