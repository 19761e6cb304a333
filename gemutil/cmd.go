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

// Package gemutil contains the command line interface and the
// configuration and input handling of the GEM model.
package gemutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ecohydro/gem"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to GEM.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel specifies the minimum severity of log messages:
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile specifies the path to the file where log messages
              are written. If it is empty, messages are written to
              standard error.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "FlowDirection",
			usage: `
              FlowDirection is the path to an ESRI ASCII grid of D8 flow
              directions (1=E, 2=SE, 4=S, 8=SW, 16=W, 32=NW, 64=N, 128=NE).
              Cells that are not nodata form the model domain, and the
              cell size of the grid is the model cell size.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), topologyCmd.Flags()},
		},
		{
			name: "Dt",
			usage: `
              Dt is the time step length in seconds.`,
			defaultVal: 86400.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NumSteps",
			usage: `
              NumSteps is the number of time steps to run. If it is 0,
              one step is run for every record in the forcing file.`,
			shorthand:  "n",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Forcing",
			usage: `
              Forcing is the path to a CSV file with one record per time
              step. Columns can include pond_input, infilt, perc1, perc2,
              perc3, es, tr1, tr2, tr3 [m], ta [°C], rh [fraction],
              rnet [W/m²], airpressure [Pa], windspeed [m/s] and
              <tracer>_input. Missing columns are zero. If there are more
              time steps than records, the records are repeated.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Parameters",
			usage: `
              Parameters maps parameter names to values. Each value is either
              a number that applies to every cell or the path to an ESRI
              ASCII grid. Parameters given here override ParameterTable.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ParameterTable",
			usage: `
              ParameterTable is the path to a TOML file mapping land use
              categories to parameter values, in the form
              [LandUse.<category>] <parameter> = <value>.
              It requires LandUse to be set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LandUse",
			usage: `
              LandUse is the path to an ESRI ASCII grid of integer land use
              categories used with ParameterTable.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InitialState",
			usage: `
              InitialState maps storage names (Pond, Theta1, Theta2, Theta3,
              GW) to their initial values, as a number or the path to an
              ESRI ASCII grid.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InitialDischarge",
			usage: `
              InitialDischarge is the initial channel discharge [m³/s], as a
              number or the path to an ESRI ASCII grid. The initial channel
              storage is calculated from it.`,
			defaultVal: "0",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Tracers",
			usage: `
              Tracers lists the names of the conservative tracers to track,
              for example d18o and no3.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Evapoconcentrate",
			usage: `
              Evapoconcentrate lists the tracers that stay behind when water
              evaporates, such as dissolved nitrate.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InitialConcentration",
			usage: `
              InitialConcentration maps tracer names to their initial
              concentration in the soil, groundwater and channel storages,
              as a number or the path to an ESRI ASCII grid.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ChannelEvaporation",
			usage: `
              ChannelEvaporation selects the channel evaporation method:
              "penman" uses the measured wind speed, "priestleytaylor" uses
              a fixed regional wind speed and "none" turns evaporation off.`,
			defaultVal: "penman",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SpinUp.MaxSteps",
			usage: `
              SpinUp.MaxSteps is the largest number of time steps used to
              spin up the storages before the simulation. Spin-up repeats
              the forcing until the total basin storage converges. If it is
              0, there is no spin-up.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SpinUp.Tolerance",
			usage: `
              SpinUp.Tolerance is the relative change in total basin storage
              between checks below which spin-up is finished.`,
			defaultVal: 0.001,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SpinUp.CheckPeriod",
			usage: `
              SpinUp.CheckPeriod is the simulated time in seconds between
              spin-up convergence checks.`,
			defaultVal: 365 * 86400.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the CSV file where the output
              variables are written after every time step.`,
			defaultVal: "gem_output.csv",
			shorthand:  "o",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables maps output variable names to expressions.
              Expressions can use basin fields such as Q, ChanS, GWfToChn
              or <tracer>_ChanS, other output variables, and the functions
              sum, mean, max, min, at(field, cell), outlets(field) and exp.`,
			defaultVal: map[string]string{"OutletQ": "outlets(Q)", "TotalChanS": "sum(ChanS)"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MapOutputs",
			usage: `
              MapOutputs lists basin fields that are written as ESRI ASCII
              grids at the end of the simulation, to <MapOutputDir>/<field>.asc.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MapOutputDir",
			usage: `
              MapOutputDir is the directory where MapOutputs are written.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TopologyFile",
			usage: `
              TopologyFile is the path to the CSV file where the processing
              order of the cells is written. If it is empty, the table is
              written to standard output.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{topologyCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GEM")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(topologyCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gemutil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gem",
	Short: "A distributed ecohydrological model.",
	Long: `GEM routes water, stable water isotopes and nitrate through a gridded river
basin. Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GEM_var' where 'var' is the
name of the variable to be set. File paths are allowed to contain environment
variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of GEM.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("GEM v%s\n", gem.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run runs a GEM simulation over the basin defined by the FlowDirection grid,
driven by the records of the Forcing file, and writes the OutputVariables to
OutputFile after every time step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, closeLog, err := newLogger(Cfg.GetString("LogLevel"), os.ExpandEnv(Cfg.GetString("LogFile")))
		if err != nil {
			return err
		}
		defer closeLog()
		return Run(Cfg, l)
	},
	DisableAutoGenTag: true,
}

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Write the cell processing order.",
	Long: `topology reads the FlowDirection grid and writes a CSV table with the
processing index, raster row, raster column and downstream index of every
cell. A downstream index of -1 means the cell drains out of the basin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, _, err := loadTopology(os.ExpandEnv(Cfg.GetString("FlowDirection")))
		if err != nil {
			return err
		}
		out := os.ExpandEnv(Cfg.GetString("TopologyFile"))
		if out == "" {
			return WriteTopology(cmd.OutOrStdout(), topo)
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("gemutil: creating topology file: %v", err)
		}
		if err := WriteTopology(f, topo); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
	DisableAutoGenTag: true,
}
