package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/fleetbot/internal/core/domain"
	"github.com/fleetops/fleetbot/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type sentMessage struct {
	chatID int64
	text   string
	rows   [][]ports.Choice
}

type fakeGateway struct {
	sent []sentMessage
}

func (g *fakeGateway) SendText(_ context.Context, chatID int64, text string) error {
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (g *fakeGateway) SendChoices(_ context.Context, chatID int64, text string, rows [][]ports.Choice) error {
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: text, rows: rows})
	return nil
}

func (g *fakeGateway) AckCallback(context.Context, string, string) error { return nil }

func (g *fakeGateway) ClearChoices(context.Context, int64, int) error { return nil }

func (g *fakeGateway) last() sentMessage {
	if len(g.sent) == 0 {
		return sentMessage{}
	}
	return g.sent[len(g.sent)-1]
}

type fakeFleet struct {
	vehicles map[string]*domain.Vehicle // keyed by identifier (id, plate or VIN)
	vins     map[string]bool
	vinErr   error
	added    []ports.AddVehicleInput
	addErr   error
	updates  []string // "<id>:<field>=<raw>"
	deleted  []int64
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{vehicles: make(map[string]*domain.Vehicle), vins: make(map[string]bool)}
}

func (f *fakeFleet) seed(v *domain.Vehicle) {
	f.vehicles[fmt.Sprintf("%d", v.ID)] = v
	f.vehicles[v.Plate] = v
	f.vehicles[v.VIN] = v
	f.vins[v.VIN] = true
}

func (f *fakeFleet) AddVehicle(_ context.Context, in ports.AddVehicleInput) (*domain.Vehicle, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, in)
	return &domain.Vehicle{
		ID:           int64(len(f.added)),
		VIN:          strings.ToUpper(in.VIN),
		Mileage:      in.Mileage,
		Year:         in.Year,
		OwnerCompany: in.OwnerCompany,
		Model:        in.Model,
		Plate:        strings.ToUpper(in.Plate),
		FuelType:     in.FuelType,
	}, nil
}

func (f *fakeFleet) ListVehicles(context.Context, int) ([]domain.Vehicle, error) { return nil, nil }

func (f *fakeFleet) Resolve(_ context.Context, identifier string) (*domain.Vehicle, error) {
	v, ok := f.vehicles[strings.ToUpper(strings.TrimSpace(identifier))]
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}
	return v, nil
}

func (f *fakeFleet) HasVIN(_ context.Context, vin string) (bool, error) {
	if f.vinErr != nil {
		return false, f.vinErr
	}
	return f.vins[strings.ToUpper(strings.TrimSpace(vin))], nil
}

func (f *fakeFleet) UpdateField(_ context.Context, id int64, field, raw string) (*domain.Vehicle, error) {
	f.updates = append(f.updates, fmt.Sprintf("%d:%s=%s", id, field, raw))
	v, ok := f.vehicles[fmt.Sprintf("%d", id)]
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}
	return v, nil
}

func (f *fakeFleet) DeleteVehicle(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeMaint struct {
	created    []ports.CreateServiceInput
	createErr  error
	notified   bool
	rejections []string // "<serviceID>/<mechanicID>/<altSlot>"
	completed  []ports.CompleteServiceInput
}

func (m *fakeMaint) Create(_ context.Context, in ports.CreateServiceInput) (*ports.CreateServiceResult, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, in)
	detail := &domain.ServiceDetail{ServiceRequest: domain.ServiceRequest{
		ID:         int64(len(m.created)),
		VehicleID:  in.VehicleID,
		MechanicID: in.MechanicID,
		AdminID:    in.AdminID,
		Status:     domain.StatusPending,
	}}
	return &ports.CreateServiceResult{Detail: detail, MechanicNotified: m.notified}, nil
}

func (m *fakeMaint) Get(context.Context, int64) (*domain.ServiceDetail, error) {
	return nil, domain.ErrServiceNotFound
}

func (m *fakeMaint) Confirm(context.Context, int64, int64) (*domain.ServiceDetail, error) {
	return nil, domain.ErrServiceNotFound
}

func (m *fakeMaint) Reject(_ context.Context, id, mechanicID int64, altSlot string) (*domain.ServiceDetail, error) {
	m.rejections = append(m.rejections, fmt.Sprintf("%d/%d/%s", id, mechanicID, altSlot))
	return &domain.ServiceDetail{ServiceRequest: domain.ServiceRequest{ID: id, Status: domain.StatusRejected}}, nil
}

func (m *fakeMaint) Complete(_ context.Context, in ports.CompleteServiceInput) (*ports.CompletionResult, error) {
	m.completed = append(m.completed, in)
	net := domain.Round2(in.CostNet)
	vat := domain.Round2(net * domain.VATRate)
	return &ports.CompletionResult{
		Detail: &domain.ServiceDetail{ServiceRequest: domain.ServiceRequest{ID: in.ServiceID, Status: domain.StatusDone}},
		Net:    net,
		VAT:    vat,
		Gross:  domain.Round2(net + vat),
	}, nil
}

type fakeUsers struct {
	mechanics []domain.User
	roles     map[int64]domain.Role
	roleErr   error
}

func (u *fakeUsers) EnsureUser(_ context.Context, id int64, _ string) (domain.Role, error) {
	return u.roles[id], nil
}

func (u *fakeUsers) RoleOf(_ context.Context, id int64) (domain.Role, error) {
	if u.roleErr != nil {
		return "", u.roleErr
	}
	role, ok := u.roles[id]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return role, nil
}

func (u *fakeUsers) RequireAdmin(_ context.Context, id int64) error {
	if u.roles[id] != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return nil
}

func (u *fakeUsers) PromoteMechanic(context.Context, int64, int64) error { return nil }

func (u *fakeUsers) Mechanics(context.Context) ([]domain.User, error) { return u.mechanics, nil }

func (u *fakeUsers) Admins(context.Context) ([]domain.User, error) { return nil, nil }

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

const chatID = int64(100)

type harness struct {
	engine *Engine
	store  *MemoryStore
	gw     *fakeGateway
	fleet  *fakeFleet
	maint  *fakeMaint
	users  *fakeUsers
}

func newHarness() *harness {
	h := &harness{
		store: NewMemoryStore(),
		gw:    &fakeGateway{},
		fleet: newFakeFleet(),
		maint: &fakeMaint{notified: true},
		users: &fakeUsers{roles: map[int64]domain.Role{100: domain.RoleAdmin, 200: domain.RoleMechanic}},
	}
	h.engine = NewEngine(h.store, h.fleet, h.maint, h.users, h.gw, zerolog.Nop())
	return h
}

// feed pushes one text answer and requires it to be consumed by the flow.
func (h *harness) feed(t *testing.T, text string) {
	t.Helper()
	handled, err := h.engine.HandleText(context.Background(), chatID, text)
	require.NoError(t, err)
	require.True(t, handled, "message %q should be consumed by the active flow", text)
}

func (h *harness) activeStep(t *testing.T) string {
	t.Helper()
	st, err := h.store.Get(context.Background(), chatID)
	require.NoError(t, err)
	require.NotNil(t, st, "expected an active flow")
	return st.Step
}

func (h *harness) requireIdle(t *testing.T) {
	t.Helper()
	st, err := h.store.Get(context.Background(), chatID)
	require.NoError(t, err)
	require.Nil(t, st, "expected no active flow")
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHandleText_NoActiveFlow(t *testing.T) {
	h := newHarness()
	handled, err := h.engine.HandleText(context.Background(), chatID, "hello")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, h.gw.sent)
}

func TestAddVehicleFlow_HappyPath(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.engine.BeginAddVehicle(context.Background(), chatID))

	h.feed(t, "wauzzz8k9na123")
	h.feed(t, "120000")
	h.feed(t, "2018")
	h.feed(t, "Acme Logistics")
	h.feed(t, "-") // model omitted
	h.feed(t, "we649lt")
	h.feed(t, "diesel")

	require.Len(t, h.fleet.added, 1)
	in := h.fleet.added[0]
	assert.Equal(t, "WAUZZZ8K9NA123", in.VIN)
	assert.Equal(t, 120000, in.Mileage)
	assert.Equal(t, 2018, in.Year)
	assert.Equal(t, "Acme Logistics", in.OwnerCompany)
	assert.Empty(t, in.Model)
	assert.Equal(t, "WE649LT", in.Plate)
	assert.Equal(t, "diesel", in.FuelType)

	h.requireIdle(t)
	assert.Contains(t, h.gw.last().text, "Vehicle registered.")
	assert.Contains(t, h.gw.last().text, "WE649LT")
}

func TestAddVehicleFlow_RepromptKeepsStep(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.engine.BeginAddVehicle(context.Background(), chatID))
	h.feed(t, "wauzzz8k9na123")

	h.feed(t, "not a number")
	assert.Equal(t, "mileage", h.activeStep(t))
	assert.Contains(t, h.gw.last().text, "Mileage must be a non-negative number")

	h.feed(t, "120000")
	assert.Equal(t, "year", h.activeStep(t))
}

func TestAddVehicleFlow_ShortVINStaysOnVINStep(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.engine.BeginAddVehicle(context.Background(), chatID))

	h.feed(t, "AB12")
	assert.Equal(t, "vin", h.activeStep(t))
	assert.Contains(t, h.gw.last().text, "too short")
	assert.Empty(t, h.fleet.added)

	h.feed(t, "wauzzz8k9na123")
	assert.Equal(t, "mileage", h.activeStep(t))
}

func TestAddVehicleFlow_TransientLookupErrorKeepsState(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.engine.BeginAddVehicle(context.Background(), chatID))

	h.fleet.vinErr = errors.New("connection refused")
	h.feed(t, "wauzzz8k9na123")
	assert.Equal(t, "vin", h.activeStep(t))
	assert.Contains(t, h.gw.last().text, "try again")

	// The same answer succeeds once the store is back.
	h.fleet.vinErr = nil
	h.feed(t, "wauzzz8k9na123")
	assert.Equal(t, "mileage", h.activeStep(t))
}

func TestAddVehicleFlow_DuplicateVINAtFirstStep(t *testing.T) {
	h := newHarness()
	h.fleet.seed(&domain.Vehicle{ID: 1, VIN: "WAUZZZ8K9NA123", Plate: "GD111AA"})
	require.NoError(t, h.engine.BeginAddVehicle(context.Background(), chatID))

	h.feed(t, "wauzzz8k9na123")
	assert.Equal(t, "vin", h.activeStep(t))
	assert.Contains(t, h.gw.last().text, "already registered")
	assert.Empty(t, h.fleet.added)
}

func TestNewServiceFlow_HappyPath(t *testing.T) {
	h := newHarness()
	h.fleet.seed(&domain.Vehicle{ID: 4, VIN: "WAUZZZ8K9NA123", Plate: "WE649LT"})
	h.users.mechanics = []domain.User{{TelegramID: 200, FullName: "Max Mechanic", Role: domain.RoleMechanic}}

	require.NoError(t, h.engine.BeginNewService(context.Background(), chatID, chatID))

	h.feed(t, "we649lt")
	keyboard := h.gw.last()
	require.Len(t, keyboard.rows, 1)
	assert.Equal(t, "Max Mechanic", keyboard.rows[0][0].Label)
	assert.Equal(t, CallbackMechPrefix+"200", keyboard.rows[0][0].Data)

	// Typing during the button step re-prompts without advancing.
	h.feed(t, "Max")
	assert.Equal(t, "mechanic", h.activeStep(t))

	require.NoError(t, h.engine.ChooseMechanic(context.Background(), chatID, 200))
	h.feed(t, "brake pads squealing")
	h.feed(t, "2026-03-12 10:00")

	require.Len(t, h.maint.created, 1)
	in := h.maint.created[0]
	assert.Equal(t, int64(4), in.VehicleID)
	assert.Equal(t, int64(200), in.MechanicID)
	assert.Equal(t, chatID, in.AdminID)
	assert.Equal(t, "brake pads squealing", in.Description)
	assert.Equal(t, "2026-03-12 10:00", in.DesiredAt)

	h.requireIdle(t)
	assert.Contains(t, h.gw.last().text, "created and sent to the mechanic")
}

func TestChooseMechanic_StoreErrorIsNotAValidationReply(t *testing.T) {
	h := newHarness()
	h.fleet.seed(&domain.Vehicle{ID: 4, VIN: "WAUZZZ8K9NA123", Plate: "WE649LT"})
	h.users.mechanics = []domain.User{{TelegramID: 200, FullName: "Max Mechanic", Role: domain.RoleMechanic}}

	require.NoError(t, h.engine.BeginNewService(context.Background(), chatID, chatID))
	h.feed(t, "we649lt")

	h.users.roleErr = errors.New("connection refused")
	err := h.engine.ChooseMechanic(context.Background(), chatID, 200)
	require.Error(t, err)
	assert.NotContains(t, h.gw.last().text, "not a mechanic")
	assert.Equal(t, "mechanic", h.activeStep(t))

	// A genuinely missing user still reads as a choice problem.
	h.users.roleErr = domain.ErrUserNotFound
	require.NoError(t, h.engine.ChooseMechanic(context.Background(), chatID, 200))
	assert.Contains(t, h.gw.last().text, "not a mechanic")
	assert.Equal(t, "mechanic", h.activeStep(t))
}

func TestNewServiceFlow_NoMechanics(t *testing.T) {
	h := newHarness()
	h.fleet.seed(&domain.Vehicle{ID: 4, VIN: "WAUZZZ8K9NA123", Plate: "WE649LT"})

	require.NoError(t, h.engine.BeginNewService(context.Background(), chatID, chatID))
	h.feed(t, "WE649LT")

	h.requireIdle(t)
	assert.Contains(t, h.gw.last().text, "/add_mechanic")
}

func TestEditVehicleFlow_FieldAllowList(t *testing.T) {
	h := newHarness()
	h.fleet.seed(&domain.Vehicle{ID: 4, VIN: "WAUZZZ8K9NA123", Plate: "WE649LT"})

	require.NoError(t, h.engine.BeginEditVehicle(context.Background(), chatID, "WE649LT"))
	assert.Equal(t, "field", h.activeStep(t))

	require.NoError(t, h.engine.ChooseEditField(context.Background(), chatID, "created_at"))
	assert.Equal(t, "field", h.activeStep(t))
	assert.Contains(t, h.gw.last().text, "cannot be edited")

	require.NoError(t, h.engine.ChooseEditField(context.Background(), chatID, "mileage"))
	assert.Equal(t, "value", h.activeStep(t))

	h.feed(t, "135000")
	require.Len(t, h.fleet.updates, 1)
	assert.Equal(t, "4:mileage=135000", h.fleet.updates[0])
	h.requireIdle(t)
}

func TestEditVehicleFlow_DeleteConfirm(t *testing.T) {
	h := newHarness()
	h.fleet.seed(&domain.Vehicle{ID: 4, VIN: "WAUZZZ8K9NA123", Plate: "WE649LT"})

	require.NoError(t, h.engine.BeginEditVehicle(context.Background(), chatID, "4"))
	require.NoError(t, h.engine.BeginDeleteConfirm(context.Background(), chatID))
	assert.Equal(t, "delete_confirm", h.activeStep(t))

	require.NoError(t, h.engine.ResolveDelete(context.Background(), chatID, false))
	h.requireIdle(t)
	assert.Empty(t, h.fleet.deleted)
	assert.Contains(t, h.gw.last().text, "cancelled")

	// A fresh run with confirmation actually deletes.
	require.NoError(t, h.engine.BeginEditVehicle(context.Background(), chatID, "4"))
	require.NoError(t, h.engine.BeginDeleteConfirm(context.Background(), chatID))
	require.NoError(t, h.engine.ResolveDelete(context.Background(), chatID, true))
	assert.Equal(t, []int64{4}, h.fleet.deleted)
	h.requireIdle(t)
}

func TestRejectFlow(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.engine.BeginReject(context.Background(), chatID, 9))

	h.feed(t, "2026-03-15 09:00")
	require.Len(t, h.maint.rejections, 1)
	assert.Equal(t, "9/100/2026-03-15 09:00", h.maint.rejections[0])
	h.requireIdle(t)
}

func TestCompleteFlow_CommaDecimalAndOmittedComments(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.engine.BeginComplete(context.Background(), chatID, 9))

	h.feed(t, "131000")
	h.feed(t, "499,99")
	h.feed(t, "-")

	require.Len(t, h.maint.completed, 1)
	in := h.maint.completed[0]
	assert.Equal(t, int64(9), in.ServiceID)
	assert.Equal(t, chatID, in.MechanicID)
	assert.Equal(t, 131000, in.FinalMileage)
	assert.InDelta(t, 499.99, in.CostNet, 0.001)
	assert.Empty(t, in.Comments)

	h.requireIdle(t)
	assert.Contains(t, h.gw.last().text, "VAT 23%")
}

func TestCancel(t *testing.T) {
	h := newHarness()

	active, err := h.engine.Cancel(context.Background(), chatID)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, h.engine.BeginAddVehicle(context.Background(), chatID))
	active, err = h.engine.Cancel(context.Background(), chatID)
	require.NoError(t, err)
	assert.True(t, active)
	h.requireIdle(t)
}

func TestStaleState_ClearsAndAsksToRestart(t *testing.T) {
	h := newHarness()
	// A state whose tag no other step handler recognises, e.g. after a deploy
	// that removed a flow.
	require.NoError(t, h.store.Put(context.Background(), chatID, newState(Tag("old_flow"), "step1")))

	handled, err := h.engine.HandleText(context.Background(), chatID, "anything")
	require.NoError(t, err)
	assert.True(t, handled)
	h.requireIdle(t)
	assert.Contains(t, h.gw.last().text, "expired")
}
