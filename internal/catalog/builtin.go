package catalog

import (
	"time"

	"github.com/JonMunkholm/p13ntable/internal/table"
)

func init() {
	registerSfdcCustomers()
	registerSfdcPriceBook()
	registerNsCustomers()
	registerAnrokTransactions()
}

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func registerSfdcCustomers() {
	Register(Layout{
		Key:   "sfdc_customers",
		Group: "SFDC",
		Label: "Customers",
		Columns: []ColumnSpec{
			{Key: "account_id_casesafe", Label: "Account ID", Type: FieldText},
			{Key: "account_name", Label: "Account Name", Type: FieldText},
			{Key: "last_activity", Label: "Last Activity", Type: FieldDate},
			{Key: "type", Label: "Type", Type: FieldText},
		},
		Rows: []table.Row{
			{"account_id_casesafe": "0015e00000AbCdEAAV", "account_name": "Acme Corp", "last_activity": date("2024-03-14"), "type": "Customer"},
			{"account_id_casesafe": "0015e00000AbCdFAAV", "account_name": "Globex", "last_activity": date("2024-01-02"), "type": "Prospect"},
			{"account_id_casesafe": "0015e00000AbCdGAAV", "account_name": "Initech", "last_activity": date("2023-11-20"), "type": "Customer"},
			{"account_id_casesafe": "0015e00000AbCdHAAV", "account_name": "Umbrella", "last_activity": date("2024-02-29"), "type": "Partner"},
			{"account_id_casesafe": "0015e00000AbCdIAAV", "account_name": "Hooli", "last_activity": date("2023-12-08"), "type": "Customer"},
		},
	})
}

func registerSfdcPriceBook() {
	Register(Layout{
		Key:   "sfdc_price_book",
		Group: "SFDC",
		Label: "Price Book",
		Columns: []ColumnSpec{
			{Key: "price_book_name", Label: "Price Book", Type: FieldText},
			{Key: "list_price", Label: "List Price", Type: FieldNumeric},
			{Key: "product_name", Label: "Product", Type: FieldText},
			{Key: "product_code", Label: "Product Code", Type: FieldText},
			{Key: "product_id_casesafe", Label: "Product ID", Type: FieldText, Hidden: true},
		},
		Rows: []table.Row{
			{"price_book_name": "Standard", "list_price": 1200.0, "product_name": "Platform License", "product_code": "PLT-001", "product_id_casesafe": "01t5e000001AbCdAAA"},
			{"price_book_name": "Standard", "list_price": 300.0, "product_name": "Support Plan", "product_code": "SUP-010", "product_id_casesafe": "01t5e000001AbCeAAA"},
			{"price_book_name": "Partner", "list_price": 950.0, "product_name": "Platform License", "product_code": "PLT-001", "product_id_casesafe": "01t5e000001AbCfAAA"},
			{"price_book_name": "Partner", "list_price": 240.0, "product_name": "Support Plan", "product_code": "SUP-010", "product_id_casesafe": "01t5e000001AbCgAAA"},
		},
	})
}

func registerNsCustomers() {
	Register(Layout{
		Key:   "ns_customers",
		Group: "NS",
		Label: "Customers",
		Columns: []ColumnSpec{
			{Key: "internal_id", Label: "Internal ID", Type: FieldText},
			{Key: "name", Label: "Name", Type: FieldText},
			{Key: "company_name", Label: "Company", Type: FieldText},
			{Key: "balance", Label: "Balance", Type: FieldNumeric},
			{Key: "overdue_balance", Label: "Overdue Balance", Type: FieldNumeric},
			{Key: "days_overdue", Label: "Days Overdue", Type: FieldNumeric},
			{Key: "salesforce_id_io", Label: "Salesforce ID", Type: FieldText, Hidden: true},
		},
	})
}

func registerAnrokTransactions() {
	Register(Layout{
		Key:   "anrok_transactions",
		Group: "Anrok",
		Label: "Transactions",
		Columns: []ColumnSpec{
			{Key: "transaction_id", Label: "Transaction ID", Type: FieldText},
			{Key: "customer_name", Label: "Customer name", Type: FieldText},
			{Key: "invoice_date", Label: "Invoice date", Type: FieldDate},
			{Key: "transaction_currency", Label: "Transaction currency", Type: FieldText},
			{Key: "sales_amount", Label: "Sales amount", Type: FieldNumeric},
			{Key: "tax_amount", Label: "Tax amount", Type: FieldNumeric},
			{Key: "customer_address_country", Label: "Customer address country", Type: FieldText},
			{Key: "void", Label: "Void", Type: FieldBool, Hidden: true},
		},
	})
}
