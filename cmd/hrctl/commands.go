package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/warp/hr-engine/attendance"
	"github.com/warp/hr-engine/factory"
	"github.com/warp/hr-engine/generic"
	"github.com/warp/hr-engine/payroll"
)

func (a *app) seedCmd() *cobra.Command {
	var dataset string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed reference data and optionally load a JSON dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOf(cmd)
			if err := a.svcs.SeedDefaults(ctx); err != nil {
				return err
			}
			if dataset == "" {
				return nil
			}
			raw, err := os.ReadFile(dataset)
			if err != nil {
				return err
			}
			ds, err := factory.ParseDataset(string(raw))
			if err != nil {
				return err
			}
			if err := a.svcs.LoadDataset(ctx, *ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d employees, %d punches, %d leave requests\n",
				len(ds.Employees), len(ds.Punches), len(ds.Leave))
			return nil
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "JSON dataset to load after seeding")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var file, month, by string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV or XLSX punch file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			batch, err := a.svcs.Attendance.Import(ctxOf(cmd), f, attendance.ImportMeta{
				Month:      month,
				Filename:   filepath.Base(file),
				ImportedBy: by,
			})
			if err != nil {
				return err
			}
			return a.print(batch)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "punch file (.csv or .xlsx)")
	cmd.Flags().StringVar(&month, "month", "", "month of the file (YYYY-MM)")
	cmd.Flags().StringVar(&by, "by", "hrctl", "importing user")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("month")
	return cmd
}

func (a *app) recalcCmd() *cobra.Command {
	var month, employee string
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Re-apply the attendance rules to a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := generic.MonthPeriod(month)
			if err != nil {
				return err
			}
			n, err := a.svcs.Attendance.Recalculate(ctxOf(cmd), p, generic.EmployeeID(employee))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d records\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to recalculate (YYYY-MM)")
	cmd.Flags().StringVar(&employee, "employee", "", "only this employee id")
	cmd.MarkFlagRequired("month")
	return cmd
}

func (a *app) cycleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Manage payroll cycles",
	}

	var in struct{ id, name, start, end, currency string }
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a DRAFT cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := generic.ParseDate(in.start)
			if err != nil {
				return err
			}
			end, err := generic.ParseDate(in.end)
			if err != nil {
				return err
			}
			c, err := a.svcs.Payroll.CreateCycle(ctxOf(cmd), payroll.CycleInput{
				ID: in.id, Name: in.name, StartDate: start, EndDate: end, Currency: in.currency,
			})
			if err != nil {
				return err
			}
			return a.print(c)
		},
	}
	create.Flags().StringVar(&in.id, "id", "", "cycle id (default: YYYY-MM of start)")
	create.Flags().StringVar(&in.name, "name", "", "display name (default: id)")
	create.Flags().StringVar(&in.start, "start", "", "first day (YYYY-MM-DD)")
	create.Flags().StringVar(&in.end, "end", "", "last day (YYYY-MM-DD)")
	create.Flags().StringVar(&in.currency, "currency", "", "currency (default from PAYROLL_DEFAULT_CURRENCY)")
	create.MarkFlagRequired("start")
	create.MarkFlagRequired("end")

	list := &cobra.Command{
		Use:   "list",
		Short: "List cycles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cycles, err := a.svcs.Payroll.Cycles(ctxOf(cmd))
			if err != nil {
				return err
			}
			return a.print(cycles)
		},
	}

	var cycleID, to string
	status := &cobra.Command{
		Use:   "status",
		Short: "Move a cycle forward (DRAFT, LOCKED, PAID)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := payroll.ParseCycleStatus(to)
			if err != nil {
				return err
			}
			c, err := a.svcs.Payroll.UpdateCycleStatus(ctxOf(cmd), cycleID, next)
			if err != nil {
				return err
			}
			return a.print(c)
		},
	}
	status.Flags().StringVar(&cycleID, "cycle", "", "cycle id")
	status.Flags().StringVar(&to, "to", "", "target status")
	status.MarkFlagRequired("cycle")
	status.MarkFlagRequired("to")

	cmd.AddCommand(create, list, status)
	return cmd
}

func (a *app) payrollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payroll",
		Short: "Payroll calculation",
	}

	var cycleID, employee string
	calculate := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate payslips for a DRAFT cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOf(cmd)
			if employee != "" {
				p, err := a.svcs.Payroll.CalculateForEmployee(ctx, cycleID, generic.EmployeeID(employee))
				if err != nil {
					return err
				}
				return a.print(p)
			}
			payslips, err := a.svcs.Payroll.CalculateForAll(ctx, cycleID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "calculated %d payslips\n", len(payslips))
			return a.print(payslips)
		},
	}
	calculate.Flags().StringVar(&cycleID, "cycle", "", "cycle id")
	calculate.Flags().StringVar(&employee, "employee", "", "only this employee id")
	calculate.MarkFlagRequired("cycle")

	cmd.AddCommand(calculate)
	return cmd
}
