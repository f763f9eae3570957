/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"net/http"
	_ "net/http/pprof" // registered on DefaultServeMux when pprofAddr is set
	"time"

	"github.com/ItWillBeSkrskr/gpsd/internal/config"
	"github.com/ItWillBeSkrskr/gpsd/internal/metrics"
	"github.com/ItWillBeSkrskr/gpsd/internal/ppslog"
	"github.com/ItWillBeSkrskr/gpsd/internal/serialfeed"
	"github.com/ItWillBeSkrskr/gpsd/ntpshm"
	"github.com/ItWillBeSkrskr/gpsd/pps"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "monitor configured devices until killed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDaemon()
	},
}

func runDaemon() error {
	c, err := config.Read(configPath)
	if err != nil {
		return err
	}
	if err := c.EvalAndValidate(); err != nil {
		return err
	}
	ppslog.SetLevel(c.LogLevel)

	if c.BootDelay > 0 {
		log.Infof("postponing startup by %s", c.BootDelay)
		time.Sleep(c.BootDelay)
	}

	if pprofAddr != "" {
		log.Warningf("starting pprof on %s", pprofAddr)
		go func() {
			log.Error(http.ListenAndServe(pprofAddr, nil)) //#nosec G114
		}()
	}

	if err := writePidFile(c.PidFile); err != nil {
		log.Errorf("writing pid file %s: %v", c.PidFile, err)
	}
	defer func() {
		if err := unix.Unlink(c.PidFile); err != nil {
			log.Debugf("removing pid file %s: %v", c.PidFile, err)
		}
	}()

	var exporter *metrics.Exporter
	if c.MetricsAddr != "" {
		exporter = metrics.New()
		go exporter.ListenAndServe(c.MetricsAddr)
	}

	var g errgroup.Group
	for _, d := range c.Devices {
		d := d
		g.Go(func() error {
			return runDevice(d, exporter)
		})
	}
	return g.Wait()
}

func runDevice(d config.DeviceConfig, exporter *metrics.Exporter) error {
	fd, err := unix.Open(d.Path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	writer, err := ntpshm.NewWriter(d.NTPUnit)
	if err != nil {
		return err
	}
	defer writer.Close()

	hooks := pps.Hooks{
		Log: ppslog.New(d.Path),
		Report: func(delta pps.TimeDelta) string {
			return delta.Real.String()
		},
		Publish: func(delta pps.TimeDelta) {
			clockTime := time.Unix(delta.Real.Sec, int64(delta.Real.Nsec))
			receiveTime := time.Unix(delta.Clock.Sec, int64(delta.Clock.Nsec))
			if err := writer.Write(clockTime, receiveTime, -20, ntpshm.LeapNoWarning); err != nil {
				log.WithField("device", d.Path).Errorf("writing ntp shm: %v", err)
			}
		},
	}
	if exporter != nil {
		hooks = exporter.Hooks(d.Path, hooks)
	}

	ctx := pps.NewMonitorContext(fd, d.Path, hooks)

	feeder, err := serialfeed.Open(d.Path, d.BaudRate, ctx)
	if err != nil {
		return err
	}
	defer feeder.Close()

	monitor, err := pps.Activate(ctx)
	if err != nil {
		return err
	}

	go func() {
		if err := feeder.Run(time.Now); err != nil {
			log.WithField("device", d.Path).Errorf("serial feed ended: %v", err)
		}
	}()

	<-monitor.Done()
	return nil
}
