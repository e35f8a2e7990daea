package geocode

import "testing"

func TestParseTwoGISItems(t *testing.T) {
	lat, lon := 51.1295, 71.4431
	items := []twogisItem{{}}
	items[0].Point.Lat = &lat
	items[0].Point.Lon = &lon

	coord, err := parseTwoGISItems(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coord.Lat != lat || coord.Lon != lon {
		t.Fatalf("unexpected coordinates: %+v", coord)
	}
}

func TestParseTwoGISItemsEmpty(t *testing.T) {
	if _, err := parseTwoGISItems(nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseTwoGISItemsMissingPoint(t *testing.T) {
	if _, err := parseTwoGISItems([]twogisItem{{}}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
