// Package carousel реализует автопрокрутку списка отзывов с паузой на время взаимодействия пользователя.
//
// Состояния: Idle (не смонтирован или список пуст), Running (тикер активен),
// Paused (пользователь навёл курсор или фокус на список). Тикер существует только в Running
// и останавливается при любом выходе из этого состояния, поэтому активен не более одного тикера.
package carousel

import (
	"sync"
	"time"
)

// State описывает состояние автопрокрутки.
type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Ticker абстрагирует time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc создаёт тикер с указанным периодом.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop() { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Option настраивает Carousel.
type Option func(*Carousel)

// WithTicker подменяет фабрику тикеров.
func WithTicker(f TickerFunc) Option {
	return func(c *Carousel) {
		c.newTicker = f
	}
}

// Carousel хранит позицию прокрутки и управляет тикером.
type Carousel struct {
	mu        sync.Mutex
	interval  time.Duration
	newTicker TickerFunc

	mounted  bool
	closed   bool
	hovered  bool
	count    int
	position int
	state    State

	ticker Ticker
	stop   chan struct{}
	gen    uint64

	positions chan int
}

// New создаёт карусель с периодом прокрутки interval.
func New(interval time.Duration, opts ...Option) *Carousel {
	c := &Carousel{
		interval:  interval,
		newTicker: newTimeTicker,
		positions: make(chan int, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Positions возвращает канал новых позиций. Хранится только последняя непрочитанная позиция.
// Канал закрывается при Unmount.
func (c *Carousel) Positions() <-chan int {
	return c.positions
}

// State возвращает текущее состояние.
func (c *Carousel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position возвращает текущую позицию.
func (c *Carousel) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// Mount запускает карусель для списка из count элементов с начальной позицией 0.
func (c *Carousel) Mount(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.mounted = true
	c.position = 0
	c.count = max(count, 0)
	c.reconcile()
}

// Unmount окончательно останавливает карусель и закрывает канал позиций.
func (c *Carousel) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.mounted = false
	c.closed = true
	c.reconcile()
	close(c.positions)
}

// HoverEnter приостанавливает прокрутку.
func (c *Carousel) HoverEnter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.hovered = true
	c.reconcile()
}

// HoverLeave возобновляет прокрутку.
func (c *Carousel) HoverLeave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.hovered = false
	c.reconcile()
}

// SetCount обновляет число элементов. При count == 0 прокрутка останавливается.
func (c *Carousel) SetCount(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.count = max(count, 0)
	if c.position >= c.count {
		c.position = 0
	}
	c.reconcile()
}

// reconcile вычисляет состояние и запускает или останавливает тикер. Вызывается под mu.
func (c *Carousel) reconcile() {
	switch {
	case !c.mounted || c.count == 0:
		c.state = Idle
	case c.hovered:
		c.state = Paused
	default:
		c.state = Running
	}

	if c.state == Running && c.ticker == nil {
		c.gen++
		c.ticker = c.newTicker(c.interval)
		c.stop = make(chan struct{})
		go c.run(c.ticker, c.stop, c.gen)
		return
	}

	if c.state != Running && c.ticker != nil {
		c.ticker.Stop()
		close(c.stop)
		c.ticker = nil
		c.stop = nil
	}
}

func (c *Carousel) run(t Ticker, stop <-chan struct{}, gen uint64) {
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			c.advance(gen)
		}
	}
}

func (c *Carousel) advance(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Тик от уже остановленного тикера.
	if c.ticker == nil || gen != c.gen {
		return
	}

	c.position = (c.position + 1) % c.count
	select {
	case c.positions <- c.position:
	default:
		select {
		case <-c.positions:
		default:
		}
		c.positions <- c.position
	}
}
