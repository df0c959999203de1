// Package catalog загружает каталог товаров из частей CSV и справочника категорий
// и предоставляет его как неизменяемую индексируемую таблицу.
//
// Части конкатенируются в порядке перечисления, затем справочник категорий
// присоединяется левым соединением по category_id (колонка id справочника
// переименовывается в category_id). Индекс строки после загрузки является
// идентичностью товара и совпадает с индексом в массиве меток моделей кластеризации.
package catalog
