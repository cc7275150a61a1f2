package repository

import (
	"context"
	"strings"

	"github.com/omerfdemir/docvalidator/constants"
	"github.com/omerfdemir/docvalidator/internal/entity"
	"github.com/omerfdemir/docvalidator/internal/extract"
)

// SeedTemplates publishes the built-in Turkish leasing document catalog
// into the store. Existing templates with the same ids are overwritten;
// the catalog is the source of truth for these seven types.
func SeedTemplates(ctx context.Context, store TemplateRepository) error {
	for _, t := range BuiltinTemplates() {
		if err := store.Put(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// BuiltinTemplates returns the document types a leasing onboarding file
// normally contains.
func BuiltinTemplates() []entity.DocumentTemplate {
	return []entity.DocumentTemplate{
		{
			ID:   "identity",
			Name: "Kimlik Belgesi",
			Fields: []entity.FieldSpec{
				{FieldID: "tc_kimlik_no", Label: "TC Kimlik No", Type: constants.FieldTypeNumber, Required: true, Pattern: `\d{11}`},
				{FieldID: "ad_soyad", Label: "Ad Soyad", Type: constants.FieldTypeText, Required: true},
				{FieldID: "dogum_tarihi", Label: "Doğum Tarihi", Type: constants.FieldTypeDate, Required: true},
				{FieldID: "gecerlilik_tarihi", Label: "Geçerlilik Tarihi", Type: constants.FieldTypeDate, Required: false},
			},
		},
		{
			ID:   "tax_certificate",
			Name: "Vergi Levhası",
			Fields: []entity.FieldSpec{
				{FieldID: "vergi_no", Label: "Vergi No", Type: constants.FieldTypeNumber, Required: true, Pattern: `\d{10}`},
				{FieldID: "unvan", Label: "Ünvan", Type: constants.FieldTypeText, Required: true},
				{FieldID: "vergi_dairesi", Label: "Vergi Dairesi", Type: constants.FieldTypeText, Required: true},
				{FieldID: "yil", Label: "Yıl", Type: constants.FieldTypeNumber, Required: false, Pattern: `\d{4}`},
			},
		},
		{
			ID:   "signature_circular",
			Name: "İmza Sirküleri",
			Fields: []entity.FieldSpec{
				{FieldID: "sirket_unvani", Label: "Şirket Ünvanı", Type: constants.FieldTypeText, Required: true},
				{FieldID: "yetkili_adi", Label: "Yetkili Adı", Type: constants.FieldTypeText, Required: true},
				{FieldID: "imza", Label: "İmza", Type: constants.FieldTypeSignature, Required: true,
					RegionHint: &entity.RegionHint{Page: 0, X: 0.55, Y: 0.65, Width: 0.4, Height: 0.25}},
				{FieldID: "noter_onayi", Label: "Noter Onayı", Type: constants.FieldTypeText, Required: true},
				{FieldID: "tarih", Label: "Tarih", Type: constants.FieldTypeDate, Required: true},
			},
		},
		{
			ID:   "trade_registry",
			Name: "Ticaret Sicil Gazetesi",
			Fields: []entity.FieldSpec{
				{FieldID: "sirket_unvani", Label: "Şirket Ünvanı", Type: constants.FieldTypeText, Required: true},
				{FieldID: "sicil_no", Label: "Sicil No", Type: constants.FieldTypeNumber, Required: true},
				{FieldID: "sermaye", Label: "Sermaye", Type: constants.FieldTypeNumber, Required: true},
				{FieldID: "ortaklar", Label: "Ortaklar", Type: constants.FieldTypeText, Required: true},
				{FieldID: "tarih", Label: "Tarih", Type: constants.FieldTypeDate, Required: true},
			},
		},
		{
			ID:   "financial_statement",
			Name: "Mali Tablo",
			Fields: []entity.FieldSpec{
				{FieldID: "sirket_unvani", Label: "Şirket Ünvanı", Type: constants.FieldTypeText, Required: true},
				{FieldID: "donem", Label: "Dönem", Type: constants.FieldTypeText, Required: true},
				{FieldID: "aktif_toplam", Label: "Aktif Toplamı", Type: constants.FieldTypeNumber, Required: true},
				{FieldID: "pasif_toplam", Label: "Pasif Toplamı", Type: constants.FieldTypeNumber, Required: true},
				{FieldID: "ciro", Label: "Ciro", Type: constants.FieldTypeNumber, Required: false},
				{FieldID: "imza", Label: "İmza/Kaşe", Type: constants.FieldTypeSignature, Required: true,
					RegionHint: &entity.RegionHint{Page: 0, X: 0.5, Y: 0.7, Width: 0.45, Height: 0.25}},
			},
		},
		{
			ID:   "kvkk_consent",
			Name: "KVKK Onay Belgesi",
			Fields: []entity.FieldSpec{
				{FieldID: "ad_soyad", Label: "Ad Soyad", Type: constants.FieldTypeText, Required: true},
				{FieldID: "tc_kimlik_no", Label: "TC Kimlik No", Type: constants.FieldTypeNumber, Required: true, Pattern: `\d{11}`},
				{FieldID: "tarih", Label: "Tarih", Type: constants.FieldTypeDate, Required: true},
				{FieldID: "imza", Label: "İmza", Type: constants.FieldTypeSignature, Required: true,
					RegionHint: &entity.RegionHint{Page: 0, X: 0.5, Y: 0.75, Width: 0.45, Height: 0.2}},
			},
		},
		{
			ID:   "contract",
			Name: "Sözleşme",
			Fields: []entity.FieldSpec{
				{FieldID: "taraflar", Label: "Taraflar", Type: constants.FieldTypeText, Required: true},
				{FieldID: "konu", Label: "Sözleşme Konusu", Type: constants.FieldTypeText, Required: true},
				{FieldID: "tutar", Label: "Tutar", Type: constants.FieldTypeNumber, Required: true},
				{FieldID: "tarih", Label: "Tarih", Type: constants.FieldTypeDate, Required: true},
				{FieldID: "imza_1", Label: "Taraf 1 İmza", Type: constants.FieldTypeSignature, Required: true,
					RegionHint: &entity.RegionHint{Page: 0, X: 0.05, Y: 0.75, Width: 0.4, Height: 0.2}},
				{FieldID: "imza_2", Label: "Taraf 2 İmza", Type: constants.FieldTypeSignature, Required: true,
					RegionHint: &entity.RegionHint{Page: 0, X: 0.55, Y: 0.75, Width: 0.4, Height: 0.2}},
			},
		},
	}
}

// GuessTemplateID picks the template whose field labels appear most
// often in the document text. Zero hits return empty; callers treat the
// guess as a recommendation only, never as an override.
func GuessTemplateID(templates []entity.DocumentTemplate, text string) string {
	folded := extract.FoldForSearch(text)
	best := ""
	bestHits := 0
	for _, t := range templates {
		hits := 0
		for _, f := range t.Fields {
			if strings.Contains(folded, extract.FoldForSearch(f.Label)) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = t.ID
		}
	}
	return best
}
