package catalog

// Default returns the built-in catalog: three business domains and the eight
// target tables they load.
func Default() *Catalog {
	c, err := New(defaultGroups(), defaultSchemas())
	if err != nil {
		panic("catalog: built-in catalog is invalid: " + err.Error())
	}
	return c
}

func defaultGroups() []DataGroup {
	return []DataGroup{
		{ID: "workforce", Name: "Workforce Management", Icon: "👥", Objects: []string{"EMPLOYEE_MASTER", "ASSIGNMENT", "PAYROLL"}},
		{ID: "payables", Name: "Accounts Payable", Icon: "🧾", Objects: []string{"INVOICE_HEADER", "INVOICE_LINES"}},
		{ID: "suppliers", Name: "Vendor Relations", Icon: "🏭", Objects: []string{"SUPPLIER_HEADER", "SUPPLIER_SITES", "SUPPLIER_TAX"}},
	}
}

func defaultSchemas() []Schema {
	return []Schema{
		{
			ID:        "EMPLOYEE_MASTER",
			Name:      "Employee Master",
			Icon:      "👤",
			TableName: "hr_employee_master",
			Fields: []TargetField{
				{ID: "fld_1", ColumnName: "emp_id", Label: "Employee ID", Type: TypeText, Required: true, Description: "Primary key for employee"},
				{ID: "fld_2", ColumnName: "first_name", Label: "First Name", Type: TypeText, Required: true, Description: "Legal first name"},
				{ID: "fld_3", ColumnName: "last_name", Label: "Last Name", Type: TypeText, Required: true, Description: "Legal last name"},
				{ID: "fld_4", ColumnName: "email", Label: "Work Email", Type: TypeText, Required: true, Description: "Business contact"},
				{ID: "fld_5", ColumnName: "hire_date", Label: "Hire Date", Type: TypeTimestamp, Required: true, Description: "Onboarding date"},
			},
		},
		{
			ID:        "ASSIGNMENT",
			Name:      "Assignment Records",
			Icon:      "📋",
			TableName: "hr_assignments",
			Fields: []TargetField{
				{ID: "fld_6", ColumnName: "assignment_id", Label: "Assignment ID", Type: TypeText, Required: true, Description: "Task unique identifier"},
				{ID: "fld_7", ColumnName: "emp_ref", Label: "Employee Ref", Type: TypeText, Required: true, Description: "Foreign key to employee"},
				{ID: "fld_8", ColumnName: "project_code", Label: "Project", Type: TypeText, Required: true, Description: "WBS Project Code"},
				{ID: "fld_9", ColumnName: "start_ts", Label: "Start Timestamp", Type: TypeTimestamp, Required: true, Description: "Activation time"},
			},
		},
		{
			ID:        "PAYROLL",
			Name:      "Payroll Data",
			Icon:      "💰",
			TableName: "fin_payroll_run",
			Fields: []TargetField{
				{ID: "fld_10", ColumnName: "pay_run_id", Label: "Payroll Run ID", Type: TypeText, Required: true, Description: "Unique payroll run"},
				{ID: "fld_11", ColumnName: "gross_amount", Label: "Gross Pay", Type: TypeNumeric, Required: true, Description: "Financial value"},
				{ID: "fld_12", ColumnName: "disbursement_date", Label: "Pay Date", Type: TypeTimestamp, Required: true, Description: "Transfer date"},
			},
		},
		{
			ID:        "INVOICE_HEADER",
			Name:      "Invoice Header",
			Icon:      "📄",
			TableName: "ap_invoice_headers",
			Fields: []TargetField{
				{ID: "fld_13", ColumnName: "invoice_id", Label: "Invoice Number", Type: TypeText, Required: true, Description: "Vendor invoice ref"},
				{ID: "fld_14", ColumnName: "invoice_ts", Label: "Invoice Date", Type: TypeTimestamp, Required: true, Description: "Document date"},
				{ID: "fld_15", ColumnName: "amount_total", Label: "Total Amount", Type: TypeNumeric, Required: true, Description: "Total gross"},
			},
		},
		{
			ID:        "INVOICE_LINES",
			Name:      "Invoice Lines",
			Icon:      "🔢",
			TableName: "ap_invoice_lines",
			Fields: []TargetField{
				{ID: "fld_16", ColumnName: "line_item_id", Label: "Line ID", Type: TypeText, Required: true, Description: "Unique line identifier"},
				{ID: "fld_17", ColumnName: "parent_inv_id", Label: "Parent Invoice", Type: TypeText, Required: true, Description: "Header reference"},
				{ID: "fld_18", ColumnName: "item_desc", Label: "Description", Type: TypeText, Required: true, Description: "Itemized description"},
			},
		},
		{
			ID:        "SUPPLIER_HEADER",
			Name:      "Supplier Header",
			Icon:      "🏢",
			TableName: "pur_suppliers",
			Fields: []TargetField{
				{ID: "fld_19", ColumnName: "vendor_id", Label: "Supplier ID", Type: TypeText, Required: true, Description: "System vendor code"},
				{ID: "fld_20", ColumnName: "business_name", Label: "Legal Name", Type: TypeText, Required: true, Description: "Entity name"},
			},
		},
		{
			ID:        "SUPPLIER_SITES",
			Name:      "Supplier Sites",
			Icon:      "📍",
			TableName: "pur_vendor_sites",
			Fields: []TargetField{
				{ID: "fld_21", ColumnName: "site_id", Label: "Site ID", Type: TypeText, Required: true, Description: "Locational identifier"},
				{ID: "fld_22", ColumnName: "address_line", Label: "Address", Type: TypeText, Required: true, Description: "Physical address"},
			},
		},
		{
			ID:        "SUPPLIER_TAX",
			Name:      "Tax Information",
			Icon:      "🛡️",
			TableName: "pur_vendor_tax_profiles",
			Fields: []TargetField{
				{ID: "fld_23", ColumnName: "tax_profile_id", Label: "Tax Profile ID", Type: TypeText, Required: true, Description: "Tax record id"},
				{ID: "fld_24", ColumnName: "standard_rate", Label: "Default Rate", Type: TypeNumeric, Required: true, Description: "Standard tax %"},
			},
		},
	}
}

// SampleCSV is a small employee extract used for demos and tests.
const SampleCSV = `EmployeeNumber,FName,LName,Contact,Dept,DateJoined,Active
E001,John,Doe,john@example.com,Engineering,2023-01-15,Yes
E002,Jane,Smith,jane@example.com,Marketing,2022-11-01,Yes
E003,Bob,Johnson,bob@example.com,Sales,2023-05-20,No`
