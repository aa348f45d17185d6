package catalog

import "sync"

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog of contract, driver, vehicle and contractor fields
func Default() *Catalog {
	defaultOnce.Do(func() {
		fields := make([]Field, 0, len(contractFields)+len(driverFields)+len(vehicleFields)+len(contractorFields))
		fields = append(fields, withGroup(GroupContracts, contractFields)...)
		fields = append(fields, withGroup(GroupDrivers, driverFields)...)
		fields = append(fields, withGroup(GroupVehicles, vehicleFields)...)
		fields = append(fields, withGroup(GroupContractors, contractorFields)...)

		c, err := New(fields)
		if err != nil {
			panic("catalog: invalid built-in catalog: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func withGroup(g Group, pairs [][2]string) []Field {
	out := make([]Field, len(pairs))
	for i, p := range pairs {
		out[i] = Field{Key: p[0], Label: p[1], Group: g}
	}
	return out
}

var driverFields = [][2]string{
	{"lastName", "Фамилия"},
	{"firstName", "Имя"},
	{"middleName", "Отчество"},
	{"phone", "Телефон 1"},
	{"phoneExtra", "Телефон 2"},
	{"passportSeries", "Паспорт: Серия"},
	{"passportNumber", "Паспорт: Номер"},
	{"passportDate", "Паспорт: Дата выдачи"},
	{"passportIssued", "Паспорт: Кем выдан"},
	{"licenseSeries", "ВУ: Серия"},
	{"licenseNumber", "ВУ: Номер"},
	{"licenseDate", "ВУ: Дата выдачи"},
	{"licenseIssued", "ВУ: Кем выдан"},
}

var vehicleFields = [][2]string{
	{"registrationNumber", "Гос. номер тягача"},
	{"trailerNumber", "Гос. номер прицепа"},
	{"brand", "Марка"},
	{"model", "Модель"},
	{"yearOfManufacture", "Год выпуска"},
	{"technicalCertificate", "ПТС/СТС"},
}

var contractorFields = [][2]string{
	{"name", "Название"},
	{"inn", "ИНН"},
	{"kpp", "КПП"},
	{"ogrn", "ОГРН"},
	{"legalAddress", "Юридический адрес"},
	{"actualAddress", "Фактический адрес"},
	{"directorName", "Директор ФИО"},
	{"accountantName", "Бухгалтер ФИО"},
	{"phone", "Телефон"},
	{"email", "Email"},
}

var contractFields = [][2]string{
	{"contractNumber", "Номер договора"},
	{"contractDate", "Дата договора"},
	{"customerName", "Заказчик"},
	{"carrierName", "Перевозчик"},
	{"vehicleType", "Тип кузова"},
	{"vehicleCapacityTons", "Грузоподъемность (т)"},
	{"vehicleCapacityM3", "Объем (м³)"},
	{"temperatureMode", "Температурный режим"},
	{"additionalConditions", "Доп. условия"},
	{"cargo", "Груз"},
	{"loadingSellerName", "Грузоотправитель"},
	{"loadingAddresses", "Адреса погрузки"},
	{"loadingDate", "Дата погрузки"},
	{"unloadingBuyerName", "Грузополучатель"},
	{"unloadingAddresses", "Адреса разгрузки"},
	{"unloadingDate", "Дата разгрузки"},
	{"paymentAmount", "Сумма (руб.)"},
	{"taxationType", "Налогообложение"},
	{"paymentTerms", "Условия оплаты"},
	{"driverFullName", "Водитель ФИО"},
	{"driverPhone", "Водитель телефон"},
	{"driverPassport", "Водитель паспорт"},
	{"driverLicense", "Водитель ВУ"},
	{"vehicleRegistrationNumber", "ТС: Номер тягача"},
	{"vehicleTrailerNumber", "ТС: Номер прицепа"},
	{"vehicleBrand", "ТС: Марка"},

	// customer requisites
	{"customer.inn", "Заказчик: ИНН"},
	{"customer.kpp", "Заказчик: КПП"},
	{"customer.ogrn", "Заказчик: ОГРН"},
	{"customer.legalAddress", "Заказчик: Юр. адрес"},
	{"customer.actualAddress", "Заказчик: Факт. адрес"},
	{"customer.directorName", "Заказчик: Директор"},
	{"customer.accountantName", "Заказчик: Бухгалтер"},
	{"customer.phone", "Заказчик: Телефон"},
	{"customer.email", "Заказчик: Email"},

	// carrier requisites
	{"carrier.inn", "Перевозчик: ИНН"},
	{"carrier.kpp", "Перевозчик: КПП"},
	{"carrier.ogrn", "Перевозчик: ОГРН"},
	{"carrier.legalAddress", "Перевозчик: Юр. адрес"},
	{"carrier.actualAddress", "Перевозчик: Факт. адрес"},
	{"carrier.directorName", "Перевозчик: Директор"},
	{"carrier.accountantName", "Перевозчик: Бухгалтер"},
	{"carrier.phone", "Перевозчик: Телефон"},
	{"carrier.email", "Перевозчик: Email"},

	// shipper requisites
	{"loadingSeller.inn", "Грузоотправитель: ИНН"},
	{"loadingSeller.kpp", "Грузоотправитель: КПП"},
	{"loadingSeller.ogrn", "Грузоотправитель: ОГРН"},
	{"loadingSeller.legalAddress", "Грузоотправитель: Юр. адрес"},
	{"loadingSeller.actualAddress", "Грузоотправитель: Факт. адрес"},
	{"loadingSeller.directorName", "Грузоотправитель: Директор"},
	{"loadingSeller.phone", "Грузоотправитель: Телефон"},

	// consignee requisites
	{"unloadingBuyer.inn", "Грузополучатель: ИНН"},
	{"unloadingBuyer.kpp", "Грузополучатель: КПП"},
	{"unloadingBuyer.ogrn", "Грузополучатель: ОГРН"},
	{"unloadingBuyer.legalAddress", "Грузополучатель: Юр. адрес"},
	{"unloadingBuyer.actualAddress", "Грузополучатель: Факт. адрес"},
	{"unloadingBuyer.directorName", "Грузополучатель: Директор"},
	{"unloadingBuyer.phone", "Грузополучатель: Телефон"},
}
