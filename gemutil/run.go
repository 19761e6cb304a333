/*
Copyright © 2025 the GEM authors.
This file is part of GEM.

GEM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GEM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GEM.  If not, see <http://www.gnu.org/licenses/>.
*/

package gemutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/ecohydro/gem"
	"github.com/ecohydro/gem/science/chanevap"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
)

// runConfig holds the settings of one simulation.
type runConfig struct {
	flowDirection        string
	dt                   float64
	numSteps             int
	forcing              string
	parameters           map[string]string
	parameterTable       string
	landUse              string
	initialState         map[string]string
	initialDischarge     string
	tracers              []string
	evapoconcentrate     map[string]bool
	initialConcentration map[string]string
	channelEvaporation   string
	spinUpMaxSteps       int
	spinUpTolerance      float64
	spinUpCheckPeriod    float64
	outputFile           string
	outputVariables      map[string]string
	mapOutputs           []string
	mapOutputDir         string
}

func readRunConfig(cfg *viper.Viper) (*runConfig, error) {
	c := &runConfig{
		flowDirection:      os.ExpandEnv(cfg.GetString("FlowDirection")),
		dt:                 cfg.GetFloat64("Dt"),
		numSteps:           cfg.GetInt("NumSteps"),
		forcing:            os.ExpandEnv(cfg.GetString("Forcing")),
		parameterTable:     os.ExpandEnv(cfg.GetString("ParameterTable")),
		landUse:            cfg.GetString("LandUse"),
		initialDischarge:   cfg.GetString("InitialDischarge"),
		channelEvaporation: strings.ToLower(cfg.GetString("ChannelEvaporation")),
		spinUpMaxSteps:     cfg.GetInt("SpinUp.MaxSteps"),
		spinUpTolerance:    cfg.GetFloat64("SpinUp.Tolerance"),
		spinUpCheckPeriod:  cfg.GetFloat64("SpinUp.CheckPeriod"),
		outputFile:         os.ExpandEnv(cfg.GetString("OutputFile")),
		mapOutputDir:       os.ExpandEnv(cfg.GetString("MapOutputDir")),
	}
	var err error
	if c.parameters, err = GetStringMapString("Parameters", cfg); err != nil {
		return nil, err
	}
	if c.initialState, err = GetStringMapString("InitialState", cfg); err != nil {
		return nil, err
	}
	if c.initialConcentration, err = GetStringMapString("InitialConcentration", cfg); err != nil {
		return nil, err
	}
	vars, err := GetStringMapString("OutputVariables", cfg)
	if err != nil {
		return nil, err
	}
	c.outputVariables = checkOutputVars(vars)
	if c.tracers, err = getStringSlice("Tracers", cfg); err != nil {
		return nil, err
	}
	evap, err := getStringSlice("Evapoconcentrate", cfg)
	if err != nil {
		return nil, err
	}
	c.evapoconcentrate = make(map[string]bool, len(evap))
	for _, name := range evap {
		c.evapoconcentrate[name] = true
	}
	if c.mapOutputs, err = getStringSlice("MapOutputs", cfg); err != nil {
		return nil, err
	}
	if c.forcing == "" {
		return nil, fmt.Errorf("gemutil: Forcing must be specified")
	}
	if c.outputFile == "" {
		return nil, fmt.Errorf("gemutil: OutputFile must be specified")
	}
	return c, nil
}

// channelEvaporation returns the channel evaporation scheme with the
// given name, or nil if evaporation is turned off.
func channelEvaporation(name string) (gem.DomainManipulator, error) {
	switch name {
	case "penman", "":
		return chanevap.Penman(), nil
	case "priestleytaylor":
		return chanevap.PriestleyTaylor(0), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("gemutil: invalid ChannelEvaporation %q; options are penman, priestleytaylor and none", name)
	}
}

// initialStorages lists the storages that can be set by InitialState.
var initialStorages = []string{"Pond", "Theta1", "Theta2", "Theta3", "GW"}

// Run runs a simulation using the settings in cfg.
func Run(cfg *viper.Viper, log logrus.FieldLogger) error {
	c, err := readRunConfig(cfg)
	if err != nil {
		return err
	}

	topo, grid, err := loadTopology(c.flowDirection)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"cells": topo.Len(), "outlets": len(topo.Outlets())}).Info("read flow directions")

	params, err := loadParams(topo, grid, c.parameters, c.parameterTable, os.ExpandEnv(c.landUse))
	if err != nil {
		return err
	}

	ff, err := os.Open(c.forcing)
	if err != nil {
		return fmt.Errorf("gemutil: %v", err)
	}
	forcing, err := ReadForcing(ff)
	ff.Close()
	if err != nil {
		return err
	}
	if c.numSteps == 0 {
		c.numSteps = forcing.Len()
	}

	b, err := gem.NewBasin(topo, params, grid.CellSize, c.dt)
	if err != nil {
		return err
	}
	for name := range c.evapoconcentrate {
		if !contains(c.tracers, name) {
			return fmt.Errorf("gemutil: Evapoconcentrate tracer %s is not in Tracers", name)
		}
	}
	for _, name := range c.tracers {
		if _, err := b.AddTracer(name, c.evapoconcentrate[name]); err != nil {
			return err
		}
		if !forcing.Has(name + "_input") {
			log.Warnf("forcing has no %s_input column; the input concentration is zero", name)
		}
	}

	for name, v := range c.initialState {
		storage, ok := canonicalName(name, initialStorages)
		if !ok {
			return fmt.Errorf("gemutil: invalid InitialState storage %q", name)
		}
		f, err := cellValues(v, topo, grid)
		if err != nil {
			return fmt.Errorf("gemutil: initial %s: %v", storage, err)
		}
		dst, _ := b.Field(storage)
		dst.CopyFrom(f)
	}
	q0, err := cellValues(c.initialDischarge, topo, grid)
	if err != nil {
		return fmt.Errorf("gemutil: initial discharge: %v", err)
	}
	b.InitFuncs = []gem.DomainManipulator{gem.CheckParams(), gem.InitChannelStorage(q0)}
	for name, v := range c.initialConcentration {
		tracer, ok := canonicalName(name, c.tracers)
		if !ok {
			return fmt.Errorf("gemutil: InitialConcentration tracer %s is not in Tracers", name)
		}
		c0, err := cellValues(v, topo, grid)
		if err != nil {
			return fmt.Errorf("gemutil: initial %s concentration: %v", tracer, err)
		}
		b.InitFuncs = append(b.InitFuncs, gem.InitTracer(tracer, c0))
	}

	w, err := os.Create(c.outputFile)
	if err != nil {
		return fmt.Errorf("gemutil: creating output file: %v", err)
	}
	defer w.Close()
	o, err := gem.NewOutputter(w, c.outputVariables, nil)
	if err != nil {
		return err
	}
	b.InitFuncs = append(b.InitFuncs, o.CheckOutputVars())

	evap, err := channelEvaporation(c.channelEvaporation)
	if err != nil {
		return err
	}
	physics := []gem.DomainManipulator{
		gem.StoreStates(),
		gem.CheckParams(),
		ApplyMeteo(forcing),
		PrescribedFluxes(forcing),
		gem.RouteLateral(),
	}
	if evap != nil {
		physics = append(physics, evap)
	}
	physics = append(physics, gem.RouteChannel(), gem.Track())

	if len(c.mapOutputs) > 0 {
		b.CleanupFuncs = []gem.DomainManipulator{func(b *gem.Basin) error {
			return writeMaps(b, grid, c.mapOutputs, c.mapOutputDir)
		}}
	}

	if err := b.Init(); err != nil {
		return fmt.Errorf("gemutil: problem initializing model: %v", err)
	}

	if c.spinUpMaxSteps > 0 {
		b.RunFuncs = append(append([]gem.DomainManipulator{}, physics...),
			gem.SteadyStateConvergenceCheck(c.spinUpMaxSteps, c.spinUpTolerance, c.spinUpCheckPeriod, log))
		if err := b.Run(); err != nil {
			return fmt.Errorf("gemutil: problem spinning up model: %v", err)
		}
		log.WithFields(logrus.Fields{"steps": b.Step, "storage": b.TotalStorage()}).Info("spin-up finished")
		b.Step = 0
		b.Done = false
	}

	b.RunFuncs = append(physics, gem.Log(log), o.Output(), gem.NumSteps(c.numSteps))
	if err := b.Run(); err != nil {
		return fmt.Errorf("gemutil: problem running model: %v", err)
	}
	if err := b.Cleanup(); err != nil {
		return fmt.Errorf("gemutil: problem shutting down model: %v", err)
	}
	return w.Close()
}

func contains(s []string, v string) bool {
	for _, ss := range s {
		if ss == v {
			return true
		}
	}
	return false
}
