// Package embedding — клиент внешнего сервиса эмбеддингов текста
// (POST /embedding {"input": ...} → {"embedding_list": [...]}).
package embedding
