package types

import "testing"

func TestAddressCompositeRoundTrip(t *testing.T) {
	line2 := `kati 2, "te pallati i ri"`
	phone := "+355691234567"
	in := Address{
		Line1:      "Rruga e Durresit 14",
		Line2:      &line2,
		City:       "Tirane",
		County:     "Tirane",
		PostalCode: "1001",
		Phone:      &phone,
	}

	raw, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var out Address
	if err := out.Scan(raw); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out.Line1 != in.Line1 || out.City != in.City || out.PostalCode != in.PostalCode {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
	if out.Line2 == nil || *out.Line2 != line2 {
		t.Fatalf("line2 lost quoting: %v", out.Line2)
	}
	if out.Country != "AL" {
		t.Fatalf("expected country default AL, got %q", out.Country)
	}
}

func TestAddressValueRequiresStreetAndCity(t *testing.T) {
	if _, err := (Address{City: "Shkoder", PostalCode: "4001"}).Value(); err == nil {
		t.Fatal("expected error for missing line1")
	}
	if _, err := (Address{Line1: "Rruga 1", PostalCode: "4001"}).Value(); err == nil {
		t.Fatal("expected error for missing city")
	}
}

func TestAddressScanNullsOptionalFields(t *testing.T) {
	var out Address
	if err := out.Scan(`("Bulevardi Skenderbeu 3",NULL,Vlore,Vlore,9401,AL,NULL)`); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out.Line2 != nil || out.Phone != nil {
		t.Fatalf("expected nil optionals, got %+v", out)
	}
	if out.County != "Vlore" {
		t.Fatalf("unexpected county %q", out.County)
	}
}
