// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Drv8139d claims the first RTL8139 on the PCI bus, brings it up and
// periodically publishes its counters to redis.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpillora/backoff"
	"github.com/mattn/go-isatty"
	"github.com/platinasystems/drv8139/elib/hw/pci"
	"github.com/platinasystems/drv8139/internal/redis/publisher"
	"github.com/platinasystems/drv8139/vnet"
	"github.com/platinasystems/drv8139/vnet/devices/ethernet/rtl8139"
	"github.com/platinasystems/drv8139/vnet/ethernet"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
)

const Name = "drv8139d"

const Usage = `drv8139d [-debug] [-no-redis] [-show] [-config FILE]
	[-redis ADDRESS] [-interval DURATION] [-name IFNAME]`

var errStopped = errors.New("stopped")

func newBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    1 * time.Second,
		Max:    60 * time.Second,
		Factor: 2,
		Jitter: false,
	}
}

type options struct {
	debug, noRedis, show bool

	config   *rtl8139.Config
	redis    string
	interval time.Duration
}

func parse(args ...string) (o options, err error) {
	flag, args := flags.New(args, "-debug", "-no-redis", "-show")
	parm, args := parms.New(args, "-config", "-redis", "-interval", "-name")
	if len(args) > 0 {
		err = fmt.Errorf("%v: unexpected\nusage: %s", args, Usage)
		return
	}
	o.debug = flag.ByName["-debug"]
	o.noRedis = flag.ByName["-no-redis"]
	o.show = flag.ByName["-show"]

	o.config = rtl8139.DefaultConfig()
	if fn := parm.ByName["-config"]; fn != "" {
		if o.config, err = rtl8139.LoadConfig(fn); err != nil {
			return
		}
	}
	if s := parm.ByName["-name"]; s != "" {
		o.config.Name = s
	}
	o.redis = "localhost:6379"
	if s := parm.ByName["-redis"]; s != "" {
		o.redis = s
	}
	o.interval = 5 * time.Second
	if s := parm.ByName["-interval"]; s != "" {
		if o.interval, err = time.ParseDuration(s); err != nil {
			return
		}
		if o.interval <= 0 {
			err = fmt.Errorf("%s: interval must be positive", s)
		}
	}
	return
}

// Find and probe device, retrying while it is absent or held by another
// driver.
func probe(v *vnet.Vnet, bus pci.Bus, c *rtl8139.Config, b *backoff.Backoff, stop <-chan os.Signal) (*rtl8139.Dev, error) {
	for {
		pd, err := rtl8139.Find(bus)
		if err == nil {
			var d *rtl8139.Dev
			if d, err = rtl8139.Probe(v, pd, c); err == nil {
				return d, nil
			}
		}
		switch rtl8139.KindOf(err) {
		case rtl8139.DeviceAbsent, rtl8139.ResourceUnavailable:
		default:
			return nil, err
		}
		t := b.Duration()
		log.Print("daemon", "warn", err, "; retry in ", t)
		select {
		case <-stop:
			return nil, errStopped
		case <-time.After(t):
		}
	}
}

type daemon struct {
	options
	v   *vnet.Vnet
	dev *rtl8139.Dev
	pub *publisher.Publisher
	out io.Writer
	tty bool

	last      vnet.Stats
	pubLog    *log.Limited
	lastFault error
}

func (d *daemon) rxHook(h *vnet.HwIf, frame []byte) {
	var eh ethernet.Header
	if err := eh.Read(frame); err != nil {
		log.Print("daemon", "debug", h.Name(), ": ", err)
		return
	}
	log.Print("daemon", "debug", h.Name(), ": rx ", len(frame), " ", &eh)
}

func (d *daemon) queueHook(h *vnet.HwIf, stopped bool) {
	log.Print("daemon", "debug", h.Name(), ": queue stopped ", stopped)
}

func (d *daemon) linkHook(h *vnet.HwIf, isUp bool) {
	s := "down"
	if isUp {
		s = "up"
	}
	log.Print("daemon", "info", h.Name(), ": link ", s)
}

func (d *daemon) update() {
	name := d.dev.Name()
	s, err := d.v.Stats(name)
	if err != nil {
		log.Print("daemon", "err", err)
		return
	}
	delta := s.Sub(d.last)
	d.last = s
	if d.debug {
		delta.Foreach(func(n string, v uint64) {
			if v != 0 {
				log.Print("daemon", "debug", name, ": ", n, " +", v)
			}
		})
	}
	if err = d.dev.LastFault(); err != nil && err.Error() != fmt.Sprint(d.lastFault) {
		log.Print("daemon", "err", err)
		d.lastFault = err
	}

	if d.pub != nil {
		m := make(map[string]uint64)
		s.Foreach(func(n string, v uint64) { m[n] = v })
		d.dev.ForeachCounter(func(n string, v uint64) { m[n] = v })
		err = d.pub.Hset(name, m)
		if err == nil {
			err = d.pub.Print(name, "state", d.dev.State().String())
		}
		if err != nil {
			d.pubLog.Print("daemon", "warn", "redis: ", err)
		}
	}

	if d.show {
		if d.tty {
			// Home cursor and clear screen.
			fmt.Fprint(d.out, "\x1b[H\x1b[2J")
		}
		d.dev.ShowDev(d.out)
	}
}

func run(args ...string) (err error) {
	o, err := parse(args...)
	if err != nil {
		return
	}
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	d := &daemon{
		options: o,
		v:       vnet.New(),
		out:     os.Stdout,
		tty:     isatty.IsTerminal(os.Stdout.Fd()),
		pubLog:  log.NewLimited(10),
	}
	d.v.RegisterHwIfLinkUpDownHook(d.linkHook)
	if d.debug {
		d.v.RegisterHwIfRxHook(d.rxHook)
		d.v.RegisterHwIfQueueHook(d.queueHook)
	}

	if d.dev, err = probe(d.v, pci.DefaultBus, o.config, newBackoff(), stop); err != nil {
		if err == errStopped {
			err = nil
		}
		return
	}
	defer func() {
		if e := d.dev.Remove(); e != nil && err == nil {
			err = e
		}
	}()
	if e := d.dev.ResetErr(); e != nil {
		log.Print("daemon", "warn", d.dev.Name(), ": ", e)
	}
	if err = d.v.SetAdminUp(d.dev.Name(), true); err != nil {
		return
	}
	log.Print("daemon", "info", d.dev.Name(), ": up")

	if !d.noRedis {
		d.pub = publisher.New(publisher.Dial(d.redis))
		defer d.pub.Close()
	}

	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case sig := <-stop:
			log.Print("daemon", "info", d.dev.Name(), ": ", sig)
			return d.v.SetAdminUp(d.dev.Name(), false)
		case <-t.C:
			d.update()
		}
	}
}

func main() {
	if err := run(os.Args[1:]...); err != nil {
		log.Print("daemon", "err", err)
		fmt.Fprintln(os.Stderr, Name+":", err)
		os.Exit(1)
	}
}
