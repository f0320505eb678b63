// Package student содержит доменную модель студента.
//
// Пакет определяет:
//
//   - Сущность Student и сводку синхронизации SyncSummary
//   - Интерфейсы хранилища: Repository, AggregateWriter, AggregateReader
//
// # Синхронизация
//
// Поля рейтинга и ранга не редактируются вручную - их перезаписывает
// каждая синхронизация с Codeforces:
//
//	sum := NewSyncSummary(profile, lastSubmission, time.Now())
//	if err := repo.ApplySyncSummary(ctx, s.ID, sum); err != nil {
//	    return err
//	}
//
// Производные данные (контесты, дневная статистика, тепловая карта)
// заменяются целиком через AggregateWriter.
package student
