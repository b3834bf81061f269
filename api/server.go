/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: httplog request lines, ECS schema
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CleanPath:     Collapses double slashes
  5. Heartbeat:     GET /healthz liveness check
  6. CORS:          Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/employees/*      Employee directory
  /api/holidays/*       Holiday calendar
  /api/attendance/*     Records, schedule, import, recalculation
  /api/leave/*          Leave types, quotas, requests
  /api/contracts/*      Employment contracts
  /api/payroll/*        Components, cycles, payslips, summaries
  /api/reports/*        Monthly attendance and leave reports
  /api/scenarios/*      Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public and the acting
  user comes from the X-Actor-ID header.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
	// RequestLogLevel is the level of successful request lines.
	RequestLogLevel slog.Level
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(h.Logger, &httplog.Options{
		Level:  opts.RequestLogLevel,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Heartbeat("/healthz"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", ActorHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Put("/{id}", h.UpdateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.CompanyAttendance)
			r.Get("/employees/{id}", h.EmployeeAttendance)
			r.Get("/schedule", h.GetSchedule)
			r.Put("/schedule", h.UpdateSchedule)
			r.Patch("/records/{id}", h.QuickEdit)
			r.Post("/recalc", h.Recalculate)
			r.Post("/import", h.ImportAttendance)
			r.Get("/batches/{id}", h.GetBatch)
		})

		r.Route("/leave", func(r chi.Router) {
			r.Route("/types", func(r chi.Router) {
				r.Get("/", h.ListLeaveTypes)
				r.Post("/", h.CreateLeaveType)
				r.Put("/{id}", h.UpdateLeaveType)
				r.Delete("/{id}", h.DeleteLeaveType)
			})
			r.Get("/quota/{employeeId}", h.GetQuota)
			r.Get("/quota/{employeeId}/history", h.GetQuotaHistory)
			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListLeaveRequests)
				r.Post("/", h.SubmitLeaveRequest)
				r.Put("/{id}/approve", h.ApproveLeaveRequest)
				r.Put("/{id}/reject", h.RejectLeaveRequest)
			})
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Get("/by-employee/{employeeId}", h.ListContracts)
			r.Post("/by-employee/{employeeId}", h.CreateContract)
			r.Get("/{id}", h.GetContract)
			r.Put("/{id}", h.UpdateContract)
		})

		r.Route("/payroll", func(r chi.Router) {
			r.Get("/components", h.ListComponents)
			r.Route("/cycles", func(r chi.Router) {
				r.Get("/", h.ListCycles)
				r.Post("/", h.CreateCycle)
				r.Get("/{cycleId}", h.GetCycle)
				r.Put("/{cycleId}/status", h.UpdateCycleStatus)
				r.Post("/{cycleId}/calculate", h.CalculatePayroll)
				r.Get("/{cycleId}/payslips", h.ListPayslips)
			})
			r.Get("/payslips/{id}", h.GetPayslip)
			r.Get("/summary/{employeeId}", h.GetSummary)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/attendance", h.AttendanceReport)
			r.Get("/leave", h.LeaveReport)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
