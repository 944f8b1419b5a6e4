package verification_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Stoq-api/internal/application/verification"
	"github.com/jhoicas/Stoq-api/internal/domain"
	"github.com/jhoicas/Stoq-api/internal/domain/entity"
	"github.com/jhoicas/Stoq-api/internal/infrastructure/memory"
)

var errConnRefused = errors.New("dial tcp: connection refused")

// flakyStore envuelve un CodeStore y simula una caída cuando down está activo.
type flakyStore struct {
	verification.CodeStore
	down atomic.Bool
}

func newFlaky() *flakyStore {
	return &flakyStore{CodeStore: memory.NewCodeStore()}
}

func (f *flakyStore) Save(ctx context.Context, c *entity.VerificationCode) error {
	if f.down.Load() {
		return errConnRefused
	}
	return f.CodeStore.Save(ctx, c)
}

func (f *flakyStore) Consume(ctx context.Context, p string, s entity.Scenario, code string, now time.Time) error {
	if f.down.Load() {
		return errConnRefused
	}
	return f.CodeStore.Consume(ctx, p, s, code, now)
}

func (f *flakyStore) Delete(ctx context.Context, p string, s entity.Scenario) error {
	if f.down.Load() {
		return errConnRefused
	}
	return f.CodeStore.Delete(ctx, p, s)
}

type sentCode struct {
	principal string
	scenario  entity.Scenario
	code      string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (n *recordingNotifier) NotifyCode(_ context.Context, principal string, scenario entity.Scenario, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentCode{principal, scenario, code})
	return n.err
}

func (n *recordingNotifier) all() []sentCode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentCode(nil), n.sent...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequence devuelve los códigos en orden.
func sequence(codes ...string) func() (string, error) {
	var i atomic.Int32
	return func() (string, error) {
		n := int(i.Add(1)) - 1
		return codes[n%len(codes)], nil
	}
}

type fixture struct {
	primary  *flakyStore
	fallback *flakyStore
	notifier *recordingNotifier
	clock    *clock
	broker   *verification.Broker
}

func newFixture(t *testing.T, opts ...verification.Option) *fixture {
	t.Helper()
	f := &fixture{
		primary:  newFlaky(),
		fallback: newFlaky(),
		notifier: &recordingNotifier{},
		clock:    newClock(),
	}
	opts = append([]verification.Option{verification.WithClock(f.clock.Now)}, opts...)
	f.broker = verification.NewBroker(f.primary, f.fallback, f.notifier, nil, opts...)
	t.Cleanup(f.broker.Wait)
	return f
}

func TestBroker_FlujoCompleto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verification.WithCodeGenerator(sequence("123456")))

	code, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)
	require.Equal(t, "123456", code)

	require.NoError(t, f.broker.Consume(ctx, "a@x.com", "123456", entity.ScenarioRegister))
	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", "123456", entity.ScenarioRegister), domain.ErrInvalidCode)

	f.broker.Wait()
	assert.Equal(t, []sentCode{{"a@x.com", entity.ScenarioRegister, "123456"}}, f.notifier.all())
}

func TestBroker_NuevoCodigoReemplazaAlAnterior(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verification.WithCodeGenerator(sequence("111111", "222222")))

	first, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)
	second, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)

	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", first, entity.ScenarioRegister), domain.ErrInvalidCode)
	assert.NoError(t, f.broker.Consume(ctx, "a@x.com", second, entity.ScenarioRegister))
}

func TestBroker_EscenariosIndependientes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verification.WithCodeGenerator(sequence("111111", "222222")))

	_, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)
	_, err = f.broker.Generate(ctx, "a@x.com", entity.ScenarioResetPassword)
	require.NoError(t, err)

	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", "111111", entity.ScenarioResetPassword), domain.ErrInvalidCode)
	assert.NoError(t, f.broker.Consume(ctx, "a@x.com", "111111", entity.ScenarioRegister))
	assert.NoError(t, f.broker.Consume(ctx, "a@x.com", "222222", entity.ScenarioResetPassword))
}

func TestBroker_ConsumoConcurrenteUnSoloExito(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	code, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)

	var ok, invalid atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch err := f.broker.Consume(ctx, "a@x.com", code, entity.ScenarioRegister); {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInvalidCode):
				invalid.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(49), invalid.Load())
}

func TestBroker_CodigoVencido(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verification.WithTTL(time.Minute))

	code, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", code, entity.ScenarioRegister), domain.ErrExpired)
}

func TestBroker_PrimarioCaidoUsaRespaldo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verification.WithCodeGenerator(sequence("123456")))
	f.primary.down.Store(true)

	code, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)

	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", "654321", entity.ScenarioRegister), domain.ErrInvalidCode)
	require.NoError(t, f.broker.Consume(ctx, "a@x.com", code, entity.ScenarioRegister), "un código erróneo no elimina la fila del respaldo")
	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", code, entity.ScenarioRegister), domain.ErrInvalidCode)
}

func TestBroker_RespaldoVencidoSeElimina(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.primary.down.Store(true)

	code, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)

	f.clock.Advance(verification.DefaultTTL + time.Second)
	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", code, entity.ScenarioRegister), domain.ErrExpired)
	assert.Equal(t, 0, f.fallback.CodeStore.(*memory.CodeStore).Len())
}

func TestBroker_CodigoDelRespaldoTrasRecuperarPrimario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.primary.down.Store(true)

	code, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)

	f.primary.down.Store(false)
	assert.NoError(t, f.broker.Consume(ctx, "a@x.com", code, entity.ScenarioRegister))
}

func TestBroker_EmisionEnPrimarioLimpiaElRespaldo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, verification.WithCodeGenerator(sequence("111111", "222222")))

	f.primary.down.Store(true)
	_, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)

	f.primary.down.Store(false)
	_, err = f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)

	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", "111111", entity.ScenarioRegister), domain.ErrInvalidCode)
	assert.NoError(t, f.broker.Consume(ctx, "a@x.com", "222222", entity.ScenarioRegister))
}

func TestBroker_AmbosNivelesCaidos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.primary.down.Store(true)
	f.fallback.down.Store(true)

	_, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	err = f.broker.Consume(ctx, "a@x.com", "123456", entity.ScenarioRegister)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	f.broker.Wait()
	assert.Empty(t, f.notifier.all(), "sin código persistido no se notifica")
}

func TestBroker_FalloDeNotificacionNoAfectaEmision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("smtp: 421 service not available")

	code, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)
	f.broker.Wait()

	assert.NoError(t, f.broker.Consume(ctx, "a@x.com", code, entity.ScenarioRegister))
}

func TestBroker_NormalizaPrincipal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	code, err := f.broker.Generate(ctx, "  A@X.com ", entity.ScenarioRegister)
	require.NoError(t, err)
	assert.NoError(t, f.broker.Consume(ctx, "a@x.com", code, entity.ScenarioRegister))
}

func TestBroker_EntradaInvalida(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.broker.Generate(ctx, "", entity.ScenarioRegister)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.broker.Generate(ctx, "a@x.com", entity.Scenario("LOGIN"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", "12ab56", entity.ScenarioRegister), domain.ErrInvalidCode)
}

func TestBroker_Purge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioRegister)
	require.NoError(t, err)
	f.primary.down.Store(true)
	reset, err := f.broker.Generate(ctx, "a@x.com", entity.ScenarioResetPassword)
	require.NoError(t, err)
	f.primary.down.Store(false)

	require.NoError(t, f.broker.Purge(ctx, "a@x.com"))
	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", reg, entity.ScenarioRegister), domain.ErrInvalidCode)
	assert.ErrorIs(t, f.broker.Consume(ctx, "a@x.com", reset, entity.ScenarioResetPassword), domain.ErrInvalidCode)
}

func TestRandomCode_Rango(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := verification.RandomCode()
		require.NoError(t, err)
		require.True(t, entity.IsWellFormedCode(code), code)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}
