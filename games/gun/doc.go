// Package gun holds the turn and elimination rules for Liar's Bar Gun.
//
// How to play
//   - Each player is handed a six-chamber revolver with a single round loaded at a random position
//   - Players take turns pulling the trigger on their own revolver, one chamber at a time
//   - An empty chamber moves that player's revolver on to the next chamber
//   - A loaded chamber eliminates the player, and their revolver stays where it stopped
//   - Turns pass to the next player still at the table, skipping anyone already out
//   - The last player standing wins, and the table is reloaded for another round with the same roster
//
// Implementation details
//   - State transitions are pure functions over State; Store wraps them for a single owner
//   - Store reports every mutation through a hook, which is where persistence happens
//   - Elimination and win events are derived by comparing snapshots, the store never announces them
//   - Turn order is advisory: any player still in may fire, CurrentPlayerIndex only tracks whose turn is suggested
package gun
