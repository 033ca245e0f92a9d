package models

// clientFields maps condition field paths to accessors. The map is built once
// from the known schema, so rule evaluation stays free of reflection; dotted
// paths cover the one level of nesting the condition editor exposes.
var clientFields = map[string]func(*Client) any{
	"name":             func(c *Client) any { return c.Name },
	"email":            func(c *Client) any { return c.Email },
	"phone":            func(c *Client) any { return c.Phone },
	"nip":              func(c *Client) any { return c.NIP },
	"regon":            func(c *Client) any { return c.REGON },
	"pkdCode":          func(c *Client) any { return c.PKDCode },
	"employmentStatus": func(c *Client) any { return string(c.EmploymentStatus) },
	"vatStatus":        func(c *Client) any { return string(c.VATStatus) },
	"taxScheme":        func(c *Client) any { return string(c.TaxScheme) },
	"zusScheme":        func(c *Client) any { return string(c.ZUSScheme) },
	"gtuCodes":         func(c *Client) any { return c.GTUCodes },
	"notes":            func(c *Client) any { return c.Notes },
	"cooperationStart": func(c *Client) any {
		if c.CooperationStart == nil {
			return nil
		}
		return c.CooperationStart.Format("2006-01-02")
	},
	"company.name": func(c *Client) any { return c.Company.Name },
	"company.nip":  func(c *Client) any { return c.Company.NIP },
}

// Field implements conditions.FieldSource. Unknown paths resolve to nil so a
// rule authored against a renamed or removed field fails its match instead of
// erroring.
func (c *Client) Field(name string) any {
	if fn, ok := clientFields[name]; ok {
		return fn(c)
	}
	return nil
}
