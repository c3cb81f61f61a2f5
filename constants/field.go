package constants

// FieldName identifies one extracted data point. The set is closed.
type FieldName string

// Personal data fields.
const (
	FieldCPF      FieldName = "cpf"
	FieldNome     FieldName = "nome"
	FieldEndereco FieldName = "endereco"
	FieldTelefone FieldName = "telefone"
	FieldEmail    FieldName = "email"
)

// Vehicle data fields.
const (
	FieldChassi FieldName = "chassi"
	FieldMarca  FieldName = "marca"
	FieldModelo FieldName = "modelo"
	FieldPlaca  FieldName = "placa"
	FieldAno    FieldName = "ano"
	FieldCor    FieldName = "cor"
)

// PersonalFields lists the personal data group in canonical order.
var PersonalFields = []FieldName{FieldCPF, FieldNome, FieldEndereco, FieldTelefone, FieldEmail}

// VehicleFields lists the vehicle data group in canonical order.
var VehicleFields = []FieldName{FieldChassi, FieldMarca, FieldModelo, FieldPlaca, FieldAno, FieldCor}

// AllFields is personal fields followed by vehicle fields.
var AllFields = append(append([]FieldName{}, PersonalFields...), VehicleFields...)

var personalSet = toSet(PersonalFields)
var vehicleSet = toSet(VehicleFields)

func toSet(fs []FieldName) map[FieldName]struct{} {
	m := make(map[FieldName]struct{}, len(fs))
	for _, f := range fs {
		m[f] = struct{}{}
	}
	return m
}

// IsPersonal reports whether f belongs to the personal group.
func IsPersonal(f FieldName) bool {
	_, ok := personalSet[f]
	return ok
}

// IsVehicle reports whether f belongs to the vehicle group.
func IsVehicle(f FieldName) bool {
	_, ok := vehicleSet[f]
	return ok
}

// ValidField reports whether f is a member of the closed field set.
func ValidField(f FieldName) bool {
	return IsPersonal(f) || IsVehicle(f)
}
