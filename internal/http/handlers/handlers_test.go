package handlers

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/routedesk/backend/internal/models"
)

func TestParseTicketsCSVRussianHeaders(t *testing.T) {
	content := "GUID клиента,Сегмент клиента,Страна,Область,Населённый пункт,Улица,Дом,Описание\n" +
		"TICK-0001,VIP,Казахстан,Павлодарская,Павлодар,Лермонтова,44,Не работает приложение\n"
	fh := makeMultipartFile(t, "tickets", "tickets.csv", content)

	tickets, errs := parseTicketsCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(tickets) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(tickets))
	}
	tk := tickets[0]
	if tk.ID != "TICK-0001" || tk.Segment != models.SegmentVIP {
		t.Fatalf("unexpected id/segment: %+v", tk)
	}
	if tk.Country != "Казахстан" || tk.Region != "Павлодарская" || tk.City != "Павлодар" {
		t.Fatalf("location fields not mapped: %+v", tk)
	}
	if tk.Street != "Лермонтова" || tk.House != "44" {
		t.Fatalf("street/house not mapped: %+v", tk)
	}
}

func TestParseTicketsCSVGeneratesIDs(t *testing.T) {
	content := "segment,city,message\nMass,Алматы,hello\n"
	fh := makeMultipartFile(t, "tickets", "tickets.csv", content)

	tickets, errs := parseTicketsCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if tickets[0].ID == "" {
		t.Fatalf("expected generated ID")
	}
}

func TestParseManagersCSVPositionNormalization(t *testing.T) {
	content := "manager_id,ФИО,Офис,Должность,Навыки,Количество обращений в работе\n" +
		"m1,Айгуль С.,Астана,Главный специалист,\"VIP, KZ\",3\n" +
		"m2,Марат Б.,almaty,Ведущий специалист,eng,0\n" +
		"m3,Дана К.,Павлодар,Специалист,,1\n"
	fh := makeMultipartFile(t, "managers", "managers.csv", content)

	managers, errs := parseManagersCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(managers) != 3 {
		t.Fatalf("expected 3 managers, got %d", len(managers))
	}
	if managers[0].Position != models.PositionChief {
		t.Fatalf("expected chief, got %q", managers[0].Position)
	}
	if managers[1].Position != models.PositionSenior {
		t.Fatalf("expected senior, got %q", managers[1].Position)
	}
	if managers[1].Office != "Алматы" {
		t.Fatalf("latin office name should canonicalize, got %q", managers[1].Office)
	}
	if len(managers[1].Skills) != 1 || managers[1].Skills[0] != "ENG" {
		t.Fatalf("skills not normalized: %v", managers[1].Skills)
	}
	if managers[0].CurrentLoad != 3 {
		t.Fatalf("expected load 3, got %d", managers[0].CurrentLoad)
	}
}

func TestParseManagersCSVNoLoadColumn(t *testing.T) {
	content := "manager_id,name,office,position,skills\nm1,Test Manager,Астана,Специалист,RU\n"
	fh := makeMultipartFile(t, "managers", "managers.csv", content)

	managers, errs := parseManagersCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if managers[0].CurrentLoad != 0 {
		t.Fatalf("expected current_load=0, got %d", managers[0].CurrentLoad)
	}
}

func TestParseBusinessUnitsCSVCoordinateBackfill(t *testing.T) {
	content := "Офис,Адрес\nПавлодар,ул. Кривенко 25\n"
	fh := makeMultipartFile(t, "business_units", "business_units.csv", content)

	units, errs := parseBusinessUnitsCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	u := units[0]
	if u.Lat == 0 || u.Lon == 0 {
		t.Fatalf("coordinates should backfill from the reference table: %+v", u)
	}
	if u.Address != "ул. Кривенко 25" {
		t.Fatalf("address not mapped: %+v", u)
	}
}

func TestParseBusinessUnitsCSVUnknownOfficeFails(t *testing.T) {
	content := "Офис\nНесуществующий Город\n"
	fh := makeMultipartFile(t, "business_units", "business_units.csv", content)

	units, errs := parseBusinessUnitsCSV(fh)
	if len(units) != 0 {
		t.Fatalf("expected no units, got %d", len(units))
	}
	if len(errs) != 1 {
		t.Fatalf("expected a coordinate error, got %v", errs)
	}
}

func TestNormalizeOfficeName(t *testing.T) {
	cases := map[string]string{
		"astana":     "Астана",
		"nur-sultan": "Астана",
		"Алматы":     "Алматы",
		"pavlodar":   "Павлодар",
		"":           "",
	}
	for in, want := range cases {
		if got := normalizeOfficeName(in); got != want {
			t.Fatalf("normalizeOfficeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShortcutCityGuards(t *testing.T) {
	cases := []struct {
		name   string
		ticket models.Ticket
		want   string
	}{
		{"domestic city", models.Ticket{Country: "Казахстан", City: "Павлодар"}, "Павлодар"},
		{"foreign country", models.Ticket{Country: "Россия", City: "Павлодар"}, ""},
		{"blank country", models.Ticket{Country: "", City: "Павлодар"}, ""},
		{"street set", models.Ticket{Country: "Казахстан", City: "Павлодар", Street: "Лермонтова"}, ""},
	}
	for _, tc := range cases {
		if got := shortcutCityFor(tc.ticket); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func makeMultipartFile(t *testing.T, fieldName, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(buf.Len()))
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	files := form.File[fieldName]
	if len(files) == 0 {
		t.Fatalf("no file headers found")
	}
	return files[0]
}
