package internal

import (
	"io"
	"time"

	"github.com/robfig/gettext/po"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Localizer is the localization service rendering consults.
type Localizer interface {
	// Translate looks up message, scoped by messageContext when non-empty.
	Translate(message, messageContext string) string
	// Localize formats numbers and times for display when useL10n is set.
	Localize(value any, useL10n bool) string
	// ToLocalTime converts times into the configured zone when useTZ is set.
	ToLocalTime(value any, useTZ bool) any
}

// DefaultLocalizer formats with golang.org/x/text and translates through
// an optional PO catalog.
type DefaultLocalizer struct {
	lang     language.Tag
	printer  *message.Printer
	location *time.Location
	catalog  *Catalog
}

// NewLocalizer creates a localizer for lang. A nil location means UTC and a
// nil catalog leaves messages untranslated.
func NewLocalizer(lang language.Tag, location *time.Location, catalog *Catalog) *DefaultLocalizer {
	if location == nil {
		location = time.UTC
	}
	return &DefaultLocalizer{
		lang:     lang,
		printer:  message.NewPrinter(lang),
		location: location,
		catalog:  catalog,
	}
}

// Language returns the localizer's language tag
func (l *DefaultLocalizer) Language() language.Tag { return l.lang }

// Location returns the zone times are converted into
func (l *DefaultLocalizer) Location() *time.Location { return l.location }

// Translate implements Localizer
func (l *DefaultLocalizer) Translate(msg, messageContext string) string {
	if l.catalog == nil {
		return msg
	}
	if messageContext != "" {
		return l.catalog.Pgettext(messageContext, msg)
	}
	return l.catalog.Gettext(msg)
}

// Localize implements Localizer
func (l *DefaultLocalizer) Localize(value any, useL10n bool) string {
	if !useL10n {
		return ToString(value)
	}
	switch v := value.(type) {
	case bool, string, SafeString, nil:
		return ToString(v)
	case time.Time:
		return DateFormat(v, DefaultDatetimeFormat)
	case float32, float64:
		return l.printer.Sprintf("%v", number.Decimal(v))
	}
	if _, ok := toNumber(value); ok {
		return l.printer.Sprintf("%d", value)
	}
	return ToString(value)
}

// ToLocalTime implements Localizer
func (l *DefaultLocalizer) ToLocalTime(value any, useTZ bool) any {
	t, ok := value.(time.Time)
	if !ok || !useTZ || t.IsZero() {
		return value
	}
	return t.In(l.location)
}

// Catalog holds translations loaded from a PO file.
type Catalog struct {
	messages map[string]string
}

const catalogContextSeparator = "\x04"

func catalogKey(messageContext, id string) string {
	if messageContext == "" {
		return id
	}
	return messageContext + catalogContextSeparator + id
}

// NewCatalog creates a catalog from id -> translation pairs.
func NewCatalog(messages map[string]string) *Catalog {
	c := &Catalog{messages: make(map[string]string, len(messages))}
	for id, str := range messages {
		c.messages[id] = str
	}
	return c
}

// LoadCatalog parses a PO file. Untranslated entries are skipped.
func LoadCatalog(r io.Reader, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := po.Parse(r)
	if err != nil {
		return nil, err
	}
	c := &Catalog{messages: make(map[string]string, len(file.Messages))}
	for _, msg := range file.Messages {
		if len(msg.Str) == 0 || msg.Str[0] == "" {
			continue
		}
		c.messages[catalogKey(msg.Ctxt, msg.Id)] = msg.Str[0]
	}
	logger.Debug(LogMsgCatalogLoaded, zap.Int(LogFieldMessages, len(c.messages)))
	return c, nil
}

// Gettext returns the translation of id, or id itself.
func (c *Catalog) Gettext(id string) string {
	if str, ok := c.messages[id]; ok {
		return str
	}
	return id
}

// Pgettext returns the translation of id within messageContext, or id.
func (c *Catalog) Pgettext(messageContext, id string) string {
	if str, ok := c.messages[catalogKey(messageContext, id)]; ok {
		return str
	}
	return id
}

// Len returns the number of translated messages
func (c *Catalog) Len() int { return len(c.messages) }
