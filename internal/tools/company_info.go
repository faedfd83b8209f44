package tools

import (
	"context"
	"encoding/json"

	"crewsheet/internal/company"
)

// --------------------- list_company_info ---------------------

type companyInfoTool struct{ host Host }

func (t *companyInfoTool) Spec() Spec {
	return Spec{
		Name:        ListCompanyInfo,
		Description: "Return configured employees, jobsites, material categories and labor activities for validation and lookup.",
		InputSchema: json.RawMessage(`{"type": "object", "additionalProperties": false, "properties": {}}`),
	}
}

// CompanyInfo is the read-only snapshot handed to the parsing layer.
type CompanyInfo struct {
	Status            string                     `json:"status"`
	Company           string                     `json:"company,omitempty"`
	Employees         []string                   `json:"employees"`
	EmployeesDetailed []company.Employee         `json:"employees_detailed"`
	Jobsites          []company.Jobsite          `json:"jobsites"`
	Materials         []company.MaterialCategory `json:"materials"`
	LaborActivities   []company.LaborActivity    `json:"labor_activities"`
}

// Snapshot describes cfg; a nil cfg yields status "empty".
func Snapshot(cfg *company.Config) CompanyInfo {
	info := CompanyInfo{
		Status:            "empty",
		Employees:         []string{},
		EmployeesDetailed: []company.Employee{},
		Jobsites:          []company.Jobsite{},
		Materials:         []company.MaterialCategory{},
		LaborActivities:   []company.LaborActivity{},
	}
	if cfg == nil {
		return info
	}
	info.Status = "ok"
	info.Company = cfg.Name
	info.Employees = append(info.Employees, cfg.EmployeeNames()...)
	info.EmployeesDetailed = append(info.EmployeesDetailed, cfg.Employees...)
	info.Jobsites = append(info.Jobsites, cfg.Jobsites...)
	info.Materials = append(info.Materials, cfg.Materials...)
	info.LaborActivities = append(info.LaborActivities, cfg.LaborActivities...)
	return info
}

func (t *companyInfoTool) Call(_ context.Context, input json.RawMessage) Result {
	var in struct{}
	if err := decodeArgs("company info", input, &in); err != nil {
		return t.host.fail(ListCompanyInfo, err)
	}
	return success(ListCompanyInfo, Snapshot(t.host.Company))
}
