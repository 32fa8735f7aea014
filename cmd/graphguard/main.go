// graphguard: проверка графа сущностей по DSL-схеме из командной строки.
//
// Usage:
//
//	# Проверить схему
//	graphguard lint --dsl dsl --enums reference/enums
//
//	# Проверить документ перед вставкой
//	graphguard validate --entity billing.Invoice invoice.json
//
//	# Проверить удаление с данными из seed
//	graphguard validate --mode delete --entity billing.Invoice --id I-1 --seed seed
//
//	# Версия
//	graphguard version
package main

func main() {
	Execute()
}
