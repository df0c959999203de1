// Package cluster хранит предобученные модели k-means по гранулярностям.
//
// Для каждой модели при загрузке строится обратный индекс кластер → строки каталога,
// поэтому выдача членов кластера не требует прохода по всем меткам.
package cluster
