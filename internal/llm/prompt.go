package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/insurance-validator/constants"
)

// fieldHints describes each field to the model; keys follow constants.AllFields.
var fieldHints = map[constants.FieldName]string{
	constants.FieldCPF:      "CPF or CNPJ (Brazilian tax id, e.g. XXX.XXX.XXX-XX or XX.XXX.XXX/XXXX-XX)",
	constants.FieldNome:     "full name of the person or company (Nome)",
	constants.FieldEndereco: "full address in any format (Endereço)",
	constants.FieldTelefone: "phone number in any format (Telefone)",
	constants.FieldEmail:    "e-mail address",
	constants.FieldChassi:   "chassis or VIN, usually 17 characters (Chassi)",
	constants.FieldMarca:    "vehicle brand, e.g. Ford, Volkswagen, Honda (Marca)",
	constants.FieldModelo:   "vehicle model, e.g. Gol, Fiesta, Civic (Modelo)",
	constants.FieldPlaca:    "license plate, any format (Placa)",
	constants.FieldAno:      "manufacturing year, 4 digits (Ano)",
	constants.FieldCor:      "vehicle color (Cor)",
}

func fieldList(names []constants.FieldName) string {
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "- %s: %s\n", n, fieldHints[n])
	}
	return b.String()
}

func nullGroup(names []constants.FieldName) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%q: null", n)
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// BuildStructuredSystemPrompt is the system message for the text path.
func BuildStructuredSystemPrompt() string {
	parts := []string{
		"You are an expert Brazilian insurance document analyzer.",
		"Extract personal and vehicle data from document text that may come from OCR and contain recognition errors.",
		"Be flexible with labels and formats (CPF/CNPJ/ID, Nome/Name and so on).",
		"If a field is not found or is empty, set it to null.",
		"Return ONLY a valid JSON object, without markdown or code fences.",
	}
	return strings.Join(parts, " ")
}

// BuildStructuredUserPrompt packages the document text for the text path.
func BuildStructuredUserPrompt(text, fileName string) string {
	var b strings.Builder
	b.WriteString("File: ")
	b.WriteString(fileName)
	b.WriteString("\n\nPersonal data:\n")
	b.WriteString(fieldList(constants.PersonalFields))
	b.WriteString("\nVehicle data (if present):\n")
	b.WriteString(fieldList(constants.VehicleFields))
	b.WriteString("\nDocument text (may contain OCR errors):\n")
	if strings.TrimSpace(text) == "" {
		b.WriteString("(empty)")
	} else {
		b.WriteString(text)
	}
	b.WriteString("\n\nRespond with this JSON shape:\n")
	fmt.Fprintf(&b, `{"personalData": %s, "vehicleData": %s}`, nullGroup(constants.PersonalFields), nullGroup(constants.VehicleFields))
	return b.String()
}

// BuildVisionSystemPrompt is the system message for one page image.
func BuildVisionSystemPrompt() string {
	parts := []string{
		"You are an expert Brazilian insurance document analyzer with vision capabilities.",
		"You receive one scanned document page as an image.",
		"Do NOT guess or invent values. If you cannot read a field from the image, set it to null.",
		"For every field add an entry to \"evidence\" with the exact text you read that supports the value, or an empty string when there is none.",
		"Also return \"rawText\" with any readable text transcribed from the page.",
		"Return ONLY a valid JSON object, without markdown or code fences.",
	}
	return strings.Join(parts, " ")
}

// BuildVisionUserPrompt names the page and the expected reply shape.
func BuildVisionUserPrompt(fileName string, pageNumber int) string {
	ev := make([]string, len(constants.AllFields))
	for i, n := range constants.AllFields {
		ev[i] = fmt.Sprintf("%q: \"\"", n)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Page %d of file %s is attached.\n", pageNumber, fileName)
	b.WriteString("First transcribe the visible text into \"rawText\". Then extract these fields:\n")
	b.WriteString(fieldList(constants.AllFields))
	b.WriteString("\nRespond with this JSON shape:\n")
	fmt.Fprintf(&b, `{"rawText": "", "personalData": %s, "vehicleData": %s, "evidence": { %s }}`,
		nullGroup(constants.PersonalFields), nullGroup(constants.VehicleFields), strings.Join(ev, ", "))
	return b.String()
}

// BuildDivergencySystemPrompt states the comparison rules for the external comparer.
func BuildDivergencySystemPrompt() string {
	parts := []string{
		"You are a Brazilian insurance document compliance expert.",
		"Compare data extracted from several documents of the same claim and report REAL divergencies only.",
		"A divergency exists only when two or more documents hold DIFFERENT non-null values for the SAME field.",
		"A null value in one document and a value in another is NOT a divergency; null and null is NOT a divergency.",
		"Use type \"inconsistent_data\" and list in \"values\" only the files holding a value.",
		"Return ONLY a valid JSON object, without markdown or code fences.",
	}
	return strings.Join(parts, " ")
}

// DivergencyDocument is one record as shown to the comparer.
type DivergencyDocument struct {
	FileName     string             `json:"fileName"`
	PersonalData map[string]*string `json:"personalData"`
	VehicleData  map[string]*string `json:"vehicleData"`
}

// BuildDivergencyUserPrompt lists the documents to compare.
func BuildDivergencyUserPrompt(docs []DivergencyDocument) string {
	var b strings.Builder
	b.WriteString("Compare these insurance documents:\n\n")
	for i, d := range docs {
		bs, _ := json.MarshalIndent(map[string]any{"personalData": d.PersonalData, "vehicleData": d.VehicleData}, "", "  ")
		fmt.Fprintf(&b, "Document %d (%s):\n%s\n\n", i+1, d.FileName, bs)
	}
	b.WriteString(`Respond with this JSON shape:
{"divergencies": [{"type": "inconsistent_data", "field": "field_name", "files": ["file1", "file2"], "values": {"file1": "value1", "file2": "value2"}, "description": "why this is a real problem"}]}`)
	return b.String()
}
