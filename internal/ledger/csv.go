package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"coldcall-platform/internal/contact"
)

// header is the fixed CSV schema. Column order is part of the file format.
var header = []string{
	"phone_number", "name", "email", "company", "status",
	"call_attempts", "consent_obtained", "opt_out_date", "prompt_name",
}

// CSVLedger stores contacts in a flat CSV file.
//
// Every operation is a whole-file read or write. A mutex serializes
// read-modify-write cycles so concurrent call tasks within the process
// cannot overwrite each other's status updates. Cross-process writers are
// not coordinated.
type CSVLedger struct {
	path string
	log  *slog.Logger

	mu sync.Mutex
}

func NewCSVLedger(path string, log *slog.Logger) *CSVLedger {
	if log == nil {
		log = slog.Default()
	}
	return &CSVLedger{path: path, log: log}
}

func (l *CSVLedger) Load(ctx context.Context) ([]contact.Contact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

func (l *CSVLedger) Save(ctx context.Context, contacts []contact.Contact) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked(contacts)
}

func (l *CSVLedger) UpdateStatus(ctx context.Context, phoneNumber string, status contact.CallStatus, incrementAttempts bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	contacts, err := l.loadLocked()
	if err != nil {
		return err
	}
	found := false
	for i := range contacts {
		if contacts[i].PhoneNumber == phoneNumber {
			contacts[i].Status = status
			if incrementAttempts {
				contacts[i].CallAttempts++
			}
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, phoneNumber)
	}
	return l.saveLocked(contacts)
}

func (l *CSVLedger) loadLocked() ([]contact.Contact, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		// Lazy creation: header-only file, empty ledger.
		if err := l.saveLocked(nil); err != nil {
			return nil, err
		}
		l.log.Info("created contact ledger", "path", l.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", l.path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}

	var contacts []contact.Contact
	for n, row := range rows[1:] {
		c, err := parseRow(col, row)
		if err != nil {
			l.log.Warn("skipping malformed ledger row", "line", n+2, "err", err)
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func parseRow(col map[string]int, row []string) (contact.Contact, error) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	c := contact.Contact{
		PhoneNumber: field("phone_number"),
		Name:        field("name"),
		Email:       field("email"),
		Company:     field("company"),
		OptOutDate:  field("opt_out_date"),
	}
	if c.PhoneNumber == "" || c.Name == "" {
		return contact.Contact{}, fmt.Errorf("missing phone_number or name")
	}

	status := field("status")
	if status == "" {
		status = contact.StatusPending.String()
	}
	parsed, err := contact.ParseCallStatus(status)
	if err != nil {
		return contact.Contact{}, err
	}
	c.Status = parsed

	if v := field("call_attempts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return contact.Contact{}, fmt.Errorf("call_attempts %q: %w", v, err)
		}
		c.CallAttempts = n
	}
	c.ConsentObtained = field("consent_obtained") == "true"

	c.PromptName = field("prompt_name")
	if c.PromptName == "" {
		c.PromptName = "default"
	}
	return c, nil
}

func (l *CSVLedger) saveLocked(contacts []contact.Contact) error {
	f, err := os.Create(l.path)
	if err != nil {
		return fmt.Errorf("ledger: create %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, c := range contacts {
		row := []string{
			c.PhoneNumber,
			c.Name,
			c.Email,
			c.Company,
			c.Status.String(),
			strconv.Itoa(c.CallAttempts),
			strconv.FormatBool(c.ConsentObtained),
			c.OptOutDate,
			c.PromptName,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
