// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package publisher writes interface counters to a redis hash.
package publisher

import (
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garyburd/redigo/redis"
)

const Timeout = 500 * time.Millisecond

var ErrClosed = errors.New("publisher: closed")

type Dialer func() (redis.Conn, error)

// Dial returns a Dialer for addr: host:port, or a unix socket path.
func Dial(addr string) Dialer {
	network := "tcp"
	if strings.HasPrefix(addr, "/") || strings.HasPrefix(addr, "@") {
		network = "unix"
	}
	return func() (redis.Conn, error) {
		conn, err := net.DialTimeout(network, addr, Timeout)
		if err != nil {
			return nil, err
		}
		return redis.NewConn(conn, Timeout, Timeout), nil
	}
}

// Publisher keeps one connection, redialed after any error.
type Publisher struct {
	sync.Mutex
	dial   Dialer
	conn   redis.Conn
	closed bool
}

func New(dial Dialer) *Publisher { return &Publisher{dial: dial} }

func (p *Publisher) Close() error {
	var err error
	p.Lock()
	defer p.Unlock()
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	p.closed = true
	return err
}

func (p *Publisher) do(cmd string, args ...interface{}) (interface{}, error) {
	p.Lock()
	defer p.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if p.conn == nil {
		conn, err := p.dial()
		if err != nil {
			return nil, err
		}
		p.conn = conn
	}
	v, err := p.conn.Do(cmd, args...)
	if err != nil {
		p.conn.Close()
		p.conn = nil
	}
	return v, err
}

// Hset sets all fields of hash key in one command.  Fields are sent sorted.
func (p *Publisher) Hset(key string, fields map[string]uint64) error {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	args := redis.Args{}.Add(key)
	for _, k := range names {
		args = args.Add(k, fields[k])
	}
	_, err := p.do("HSET", args...)
	return err
}

// Print sets a single field.
func (p *Publisher) Print(key, field string, value interface{}) error {
	_, err := p.do("HSET", key, field, value)
	return err
}
