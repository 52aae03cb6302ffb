// Package metric publishes expvar counters together with a rolling per-minute history.
package metric

import (
	"container/list"
	"expvar"
	"strings"
	"sync"
	"time"
)

// TickerFunc is the function signature accepted by AddTickerFunc, will be called once per minute.
type TickerFunc func()

var (
	tickerOnce     sync.Once
	tickerFuncChan = make(chan TickerFunc)
)

// AddTickerFunc adds a new function callback to the list of metrics TickerFuncs that get
// called each minute.
func AddTickerFunc(f TickerFunc) {
	tickerOnce.Do(func() { go metricsTicker() })
	tickerFuncChan <- f
}

// Push adds the metric to the end of the list and returns a comma separated string of the
// previous 61 entries.  We return 61 instead of 60 (an hour) because the chart on the client
// tracks deltas between these values - there is nothing to compare the first value against.
func Push(history *list.List, ev expvar.Var) string {
	history.PushBack(ev.String())
	if history.Len() > 61 {
		history.Remove(history.Front())
	}
	return joinStringList(history)
}

// Counter is an expvar.Int with a rendered per-minute history, both published in one expvar.Map.
type Counter struct {
	Total *expvar.Int
	hist  *expvar.String

	mu      sync.Mutex
	history *list.List
}

// NewCounter registers name and name+"Hist" in m and starts recording the history.
func NewCounter(m *expvar.Map, name string) *Counter {
	c := &Counter{
		Total:   new(expvar.Int),
		hist:    new(expvar.String),
		history: list.New(),
	}
	m.Set(name, c.Total)
	m.Set(name+"Hist", c.hist)
	AddTickerFunc(c.tick)
	return c
}

// Add increments the counter.
func (c *Counter) Add(delta int64) {
	c.Total.Add(delta)
}

// History returns the rendered history.
func (c *Counter) History() string {
	return c.hist.Value()
}

func (c *Counter) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hist.Set(Push(c.history, c.Total))
}

// metricsTicker calls the current list of TickerFuncs once per minute.
func metricsTicker() {
	funcs := make([]TickerFunc, 0)
	ticker := time.NewTicker(time.Minute)

	for {
		select {
		case <-ticker.C:
			for _, f := range funcs {
				f()
			}
		case f := <-tickerFuncChan:
			funcs = append(funcs, f)
		}
	}
}

// joinStringList joins a List containing strings by commas.
func joinStringList(listOfStrings *list.List) string {
	if listOfStrings.Len() == 0 {
		return ""
	}
	s := make([]string, 0, listOfStrings.Len())
	for e := listOfStrings.Front(); e != nil; e = e.Next() {
		s = append(s, e.Value.(string))
	}
	return strings.Join(s, ",")
}
